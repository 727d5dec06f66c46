// Package flags holds the CLI flags and config helpers shared by the
// registry binaries.
package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/edgehive/device-registry/common"
	"github.com/edgehive/device-registry/httpserver"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *httpserver.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var DataDirFlag = &cli.StringFlag{
	Name:  "data-dir",
	Value: "/var/lib/device-registry",
	Usage: "directory for the default file based snapshots",
}

var CredentialsStoreFlag = &cli.StringFlag{
	Name:  "credentials-store-uri",
	Usage: "storage location for credentials (file://, s3://, vault://); overrides data-dir",
}

var DevicesStoreFlag = &cli.StringFlag{
	Name:  "devices-store-uri",
	Usage: "storage location for device registrations (file://, s3://, vault://); overrides data-dir",
}

var TenantsStoreFlag = &cli.StringFlag{
	Name:  "tenants-store-uri",
	Usage: "storage location for tenants (file://, s3://, vault://); overrides data-dir",
}

var SaveIntervalFlag = &cli.Int64Flag{
	Name:  "save-interval-seconds",
	Value: 3,
	Usage: "interval between snapshot saves",
}

var MaxBcryptCostFlag = &cli.IntFlag{
	Name:  "max-bcrypt-iterations",
	Value: 10,
	Usage: "maximum bcrypt cost factor accepted for password hashes",
}

var CacheMaxAgeFlag = &cli.Int64Flag{
	Name:  "cache-max-age-seconds",
	Value: 300,
	Usage: "max-age handed out with cacheable credential lookups",
}

var AssertionMaxAgeFlag = &cli.Int64Flag{
	Name:  "assertion-max-age-seconds",
	Value: 60,
	Usage: "max-age handed out with assertions for directly connecting devices",
}

var ReadOnlyFlag = &cli.BoolFlag{
	Name:  "read-only",
	Value: false,
	Usage: "disable modification of registry data",
}

var StartEmptyFlag = &cli.BoolFlag{
	Name:  "start-empty",
	Value: false,
	Usage: "skip loading persisted snapshots on startup",
}

var MaxVerificationsFlag = &cli.IntFlag{
	Name:  "max-concurrent-verifications",
	Value: 0,
	Usage: "maximum concurrent password verifications, 0 selects the CPU count",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "device-registry",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
