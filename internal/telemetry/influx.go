package telemetry

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_http "github.com/influxdata/influxdb-client-go/v2/api/http"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/wroge/wgs84"

	"github.com/usvlab/boatlink/internal/config"
)

// Measurement is the InfluxDB measurement telemetry points are written to.
const Measurement = "boat_telemetry"

// InfluxSink writes samples as InfluxDB points. When the server does not
// answer the startup ping, points go to a gzip line-protocol backup file.
type InfluxSink struct {
	mu         sync.Mutex
	client     influxdb2.Client
	writer     influxdb2_api.WriteAPIBlocking
	backup     *gzip.Writer
	backupFile *os.File
	valid      bool
	timeout    time.Duration
	logger     *slog.Logger
}

// NewInfluxSink connects to the server described by cfg. Every request,
// including the startup ping, is bounded by timeout (5s when zero).
func NewInfluxSink(ctx context.Context, cfg config.InfluxConfig, timeout time.Duration, logger *slog.Logger) (*InfluxSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	s := &InfluxSink{logger: logger, timeout: timeout}

	opts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(uint(math.Ceil(timeout.Seconds())))
	s.client = influxdb2.NewClientWithOptions(cfg.URL(), cfg.Token, opts)

	// validate client connection health
	running, err := s.client.Ping(ctx)
	if err != nil || !running {
		logger.Warn("InfluxDB not reachable, writing to backup file",
			"url", cfg.URL(), "backupPath", cfg.BackupPath, "error", err)
		if err := s.openBackup(cfg.BackupPath); err != nil {
			s.client.Close()
			return nil, err
		}
		return s, nil
	}

	s.ensureBucket(ctx, cfg.Org, cfg.Bucket)
	s.writer = s.client.WriteAPIBlocking(cfg.Org, cfg.Bucket)
	s.valid = true
	logger.Info("InfluxDB client initialized", "url", cfg.URL(), "bucket", cfg.Bucket)
	return s, nil
}

func (s *InfluxSink) openBackup(path string) error {
	if path == "" {
		return fmt.Errorf("influx unreachable and no backup path configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating backup dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	s.backupFile = file
	s.backup = gzip.NewWriter(file)
	return nil
}

// ensureBucket creates the org and bucket when the token allows it. Failures
// are logged only; writes report their own errors later.
func (s *InfluxSink) ensureBucket(ctx context.Context, orgName, bucket string) {
	orgs := s.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, orgName)
	if err != nil {
		s.logger.Info("Organization not found, creating", "org", orgName)
		org, err = orgs.CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			s.logger.Warn("Error creating organization", "org", orgName, "error", err)
			return
		}
	}

	buckets := s.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, bucket); err == nil {
		return
	}
	s.logger.Info("Bucket not found, creating", "bucket", bucket)
	rule := domain.RetentionRuleTypeExpire
	_, err = buckets.CreateBucketWithName(ctx, org, bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: 60 * 60 * 24 * 30, // 30 days
	})
	if err != nil {
		s.logger.Warn("Error creating bucket", "bucket", bucket, "error", err)
	}
}

// Point converts a sample into an InfluxDB point, adding web mercator x/y.
func Point(smp Sample, ts time.Time) *influxdb2_write.Point {
	x, y, _ := wgs84.EPSG().Transform(4326, 3857)(smp.Lon, smp.Lat, 0)
	return influxdb2.NewPoint(Measurement,
		map[string]string{"boatId": smp.BoatID},
		map[string]interface{}{
			"lat":         smp.Lat,
			"lon":         smp.Lon,
			"x":           x,
			"y":           y,
			"head":        smp.Head,
			"targetHead":  smp.TargetHead,
			"leftThrust":  smp.LeftThrust,
			"rightThrust": smp.RightThrust,
			"pid":         smp.PID,
		},
		ts,
	)
}

// Send writes one point to the server or the backup file.
func (s *InfluxSink) Send(ctx context.Context, smp Sample) error {
	point := Point(smp, time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.valid {
		if s.backup == nil {
			return fmt.Errorf("influx sink closed")
		}
		line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
		if _, err := s.backup.Write([]byte(line + "\n")); err != nil {
			return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
		}
		return nil
	}

	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.writer.WritePoint(wctx, point); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var herr *influxdb2_http.Error
		if errors.As(err, &herr) && herr.StatusCode > 0 {
			return &DeliveryError{StatusCode: herr.StatusCode, Body: herr.Message}
		}
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return nil
}

// Close flushes the backup file and closes the client.
func (s *InfluxSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.backup != nil {
		errs = append(errs, s.backup.Close(), s.backupFile.Close())
		s.backup = nil
	}
	s.client.Close()
	return errors.Join(errs...)
}
