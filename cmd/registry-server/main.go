// The registry-server binary serves the device registry API: tenant, device
// and credential management plus the adapter-facing lookup and assertion
// endpoints.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/edgehive/device-registry/auth"
	"github.com/edgehive/device-registry/cmd/flags"
	"github.com/edgehive/device-registry/credentials"
	"github.com/edgehive/device-registry/devices"
	"github.com/edgehive/device-registry/httpserver"
	"github.com/edgehive/device-registry/interfaces"
	"github.com/edgehive/device-registry/management"
	"github.com/edgehive/device-registry/registration"
	"github.com/edgehive/device-registry/storage"
	"github.com/edgehive/device-registry/tenants"
	"github.com/edgehive/device-registry/validation"
)

var cliFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.DataDirFlag,
	flags.CredentialsStoreFlag,
	flags.DevicesStoreFlag,
	flags.TenantsStoreFlag,
	flags.SaveIntervalFlag,
	flags.MaxBcryptCostFlag,
	flags.CacheMaxAgeFlag,
	flags.AssertionMaxAgeFlag,
	flags.ReadOnlyFlag,
	flags.StartEmptyFlag,
	flags.MaxVerificationsFlag,
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:   "registry-server",
		Usage:  "Serve the device registry API",
		Flags:  cliFlags,
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	dataDir := cCtx.String(flags.DataDirFlag.Name)
	saveInterval := time.Duration(cCtx.Int64(flags.SaveIntervalFlag.Name)) * time.Second
	readOnly := cCtx.Bool(flags.ReadOnlyFlag.Name)
	startEmpty := cCtx.Bool(flags.StartEmptyFlag.Name)

	storageFactory := storage.NewFactory(logger)
	backendFor := func(flagName, fileName string) (interfaces.PersistentStore, error) {
		uri := cCtx.String(flagName)
		if uri == "" {
			uri = "file://" + filepath.Join(dataDir, fileName)
		}
		return storageFactory.StoreFor(uri)
	}

	credentialsBackend, err := backendFor(flags.CredentialsStoreFlag.Name, "credentials.json")
	if err != nil {
		return fmt.Errorf("credentials storage: %w", err)
	}
	devicesBackend, err := backendFor(flags.DevicesStoreFlag.Name, "devices.json")
	if err != nil {
		return fmt.Errorf("devices storage: %w", err)
	}
	tenantsBackend, err := backendFor(flags.TenantsStoreFlag.Name, "tenants.json")
	if err != nil {
		return fmt.Errorf("tenants storage: %w", err)
	}

	validator := validation.NewSecretValidator(cCtx.Int(flags.MaxBcryptCostFlag.Name))

	credentialStore := credentials.NewStore(credentials.Config{
		CacheMaxAge:         time.Duration(cCtx.Int64(flags.CacheMaxAgeFlag.Name)) * time.Second,
		ModificationEnabled: !readOnly,
		StartEmpty:          startEmpty,
		SaveInterval:        saveInterval,
	}, validator, credentialsBackend, logger.With("store", "credentials"))

	deviceStore := devices.NewStore(devices.Config{
		ModificationEnabled: !readOnly,
		StartEmpty:          startEmpty,
		SaveInterval:        saveInterval,
	}, devicesBackend, nil, logger.With("store", "devices"))

	tenantStore := tenants.NewStore(tenants.Config{
		ModificationEnabled: !readOnly,
		StartEmpty:          startEmpty,
		SaveInterval:        saveInterval,
	}, tenantsBackend, logger.With("store", "tenants"))

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), time.Minute)
	defer cancelLoad()
	if err := credentialStore.Load(loadCtx); err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	if err := deviceStore.Load(loadCtx); err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	if err := tenantStore.Load(loadCtx); err != nil {
		return fmt.Errorf("loading tenants: %w", err)
	}

	engine := registration.NewEngine(deviceStore, deviceStore, registration.Config{
		AssertionMaxAge: time.Duration(cCtx.Int64(flags.AssertionMaxAgeFlag.Name)) * time.Second,
	}, logger)

	verifier := auth.NewVerifier(cCtx.Int(flags.MaxVerificationsFlag.Name), nil, logger)
	dispatcher := management.NewDispatcher(credentialStore, deviceStore, tenantStore, engine,
		verifyHandler(credentialStore, verifier), logger)

	srv, err := httpserver.New(
		flags.ConfigureServer(cCtx, logger, cCtx.String(flags.ListenAddrFlag.Name)),
		httpserver.NewHandler(dispatcher, logger))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// background snapshot persistence
	saveCtx, stopSavers := context.WithCancel(context.Background())
	var savers sync.WaitGroup
	for _, saver := range []*storage.PeriodicSaver{
		credentialStore.Saver(), deviceStore.Saver(), tenantStore.Saver(),
	} {
		if saver == nil {
			continue
		}
		savers.Add(1)
		go func(s *storage.PeriodicSaver) {
			defer savers.Done()
			s.Run(saveCtx)
		}(saver)
	}

	srv.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	srv.Shutdown()
	stopSavers()
	savers.Wait()
	logger.Info("Server shutdown complete")

	return nil
}

// verifyHandler serves the credentials.verify extension operation: it looks
// up the hashed-password record for an auth-id and checks the presented
// password against it.
func verifyHandler(store *credentials.Store, verifier *auth.Verifier) management.CustomHandler {
	return func(ctx context.Context, req *management.Request) *management.Response {
		if req.Operation != management.OpCredentialsVerify {
			return nil
		}
		var body struct {
			AuthID   string `json:"auth-id"`
			Password string `json:"password"`
		}
		if err := json.Unmarshal(req.Payload, &body); err != nil || body.AuthID == "" || body.Password == "" {
			return &management.Response{Status: http.StatusBadRequest, Detail: "auth-id and password must be set"}
		}

		record, _, err := store.Lookup(ctx, req.TenantID, interfaces.TypeHashedPassword, body.AuthID, nil)
		if err != nil {
			return &management.Response{Status: http.StatusNotFound, Detail: "not found"}
		}
		if err := verifier.VerifyPassword(ctx, record, body.Password); err != nil {
			return &management.Response{Status: http.StatusForbidden, Detail: "not authorized"}
		}
		return &management.Response{
			Status:  http.StatusOK,
			Payload: map[string]string{"device-id": record.DeviceID, "auth-id": record.AuthID},
		}
	}
}
