// Copyright (c) 2020-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mattermost/awsprov/internal/api"
	"github.com/mattermost/awsprov/internal/common"
	"github.com/mattermost/awsprov/internal/directory"
	"github.com/mattermost/awsprov/internal/metrics"
	"github.com/mattermost/awsprov/internal/saga"
	"github.com/mattermost/awsprov/internal/steps"
	"github.com/mattermost/awsprov/internal/store"
	"github.com/mattermost/awsprov/internal/supervisor"
	"github.com/mattermost/awsprov/internal/ticketing"
	"github.com/mattermost/awsprov/model"
)

const (
	databaseFlag          = "database"
	listenFlag            = "listen"
	bucketFlag            = "bucket"
	workersFlag           = "workers"
	poolRetryIntervalFlag = "pool-retry-interval"
	poolMaxRetriesFlag    = "pool-max-retries"
	leaseFlag             = "lease"
	recoveryIntervalFlag  = "recovery-interval"
	recoveryGraceFlag     = "recovery-grace"
	stepsFileFlag         = "steps-file"
	directoryURLFlag      = "directory-url"
	directoryTokenFlag    = "directory-token"
	ticketingURLFlag      = "ticketing-url"
	ticketingTokenFlag    = "ticketing-token"
	awsRegionFlag         = "aws-region"
	shutdownTimeoutFlag   = "shutdown-timeout"
	debugFlag             = "debug"

	memoryDatabase = "memory://"
)

func init() {
	serverCmd.RunE = runServer
	serverCmd.PersistentFlags().String(listenFlag, "localhost:8077", "Local interface and port to listen on")
	serverCmd.PersistentFlags().String(databaseFlag, "postgres://localhost:5432/awsprov?sslmode=disable", "Location of a Postgres database for the server to use, or memory:// for a throwaway in-process store")
	serverCmd.PersistentFlags().String(bucketFlag, "", "S3 bucket receiving transaction manifests")
	serverCmd.PersistentFlags().Int(workersFlag, 8, "Maximum number of transactions running at the same time")
	serverCmd.PersistentFlags().Duration(poolRetryIntervalFlag, time.Second, "Delay between two admission attempts while the worker pool is full")
	serverCmd.PersistentFlags().Uint64(poolMaxRetriesFlag, 0, "Admission attempts before a submission is left to recovery; 0 retries until the request is canceled")
	serverCmd.PersistentFlags().Duration(leaseFlag, time.Hour, "How long a transaction claim survives without progress before another runner may take it over")
	serverCmd.PersistentFlags().Duration(recoveryIntervalFlag, time.Minute, "Interval between two scans for orphaned transactions")
	serverCmd.PersistentFlags().Duration(recoveryGraceFlag, 2*time.Minute, "Age a Pending transaction must reach before it is considered orphaned")
	serverCmd.PersistentFlags().String(stepsFileFlag, "", "YAML file overriding the built-in step catalog")
	serverCmd.PersistentFlags().String(directoryURLFlag, "", "Address of the directory service")
	serverCmd.PersistentFlags().String(directoryTokenFlag, "", "Bearer token for the directory service")
	serverCmd.PersistentFlags().String(ticketingURLFlag, "", "Address of the ticketing service")
	serverCmd.PersistentFlags().String(ticketingTokenFlag, "", "Bearer token for the ticketing service")
	serverCmd.PersistentFlags().String(awsRegionFlag, "", "AWS region of the IAM and S3 clients")
	serverCmd.PersistentFlags().Duration(shutdownTimeoutFlag, 30*time.Second, "How long running transactions may take to finish on shutdown")
	serverCmd.PersistentFlags().Bool(debugFlag, false, "Whether to output debug logs")
}

// provisioningStore is the persistence the server wires together.
type provisioningStore interface {
	saga.Store
	saga.Sequence
	supervisor.Store
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the awsprov server.",
}

func runServer(command *cobra.Command, args []string) error {
	command.SilenceUsage = true

	config := viper.New()
	config.SetEnvPrefix("AWSPROV")
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	config.AutomaticEnv()
	if err := config.BindPFlags(serverCmd.PersistentFlags()); err != nil {
		return errors.Wrap(err, "failed to bind flags")
	}

	debug := config.GetBool(debugFlag)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	listen := config.GetString(listenFlag)
	if listen == "" {
		return errors.New("the server command requires the --listen flag not be empty")
	}

	dataStore, closeStore, err := provisioningStoreFromConfig(config.GetString(databaseFlag))
	if err != nil {
		return err
	}
	defer closeStore()

	registry, err := buildRegistry(command.Context(), config)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"bucket":  config.GetString(bucketFlag),
		"workers": config.GetInt(workersFlag),
		"kinds":   len(registry.Kinds()),
		"debug":   debug,
	}).Info("Starting awsprov server")

	m := metrics.New()
	pool := saga.NewWorkerPool(
		config.GetInt(workersFlag),
		saga.FixedIntervalPolicy{
			Interval:   config.GetDuration(poolRetryIntervalFlag),
			MaxRetries: config.GetUint64(poolMaxRetriesFlag),
		},
		logger,
		m,
	)
	orchestrator, err := saga.NewOrchestrator(&saga.OrchestratorOptions{
		Store:    dataStore,
		Sequence: dataStore,
		Registry: registry,
		Pool:     pool,
		Logger:   logger,
		Metrics:  m,
		Owner:    model.NewID(),
		Lease:    config.GetDuration(leaseFlag),
	})
	if err != nil {
		return err
	}

	recovery := supervisor.NewRecoverySupervisor(dataStore, orchestrator, supervisor.RecoveryOptions{
		Interval: config.GetDuration(recoveryIntervalFlag),
		Grace:    config.GetDuration(recoveryGraceFlag),
		Lease:    config.GetDuration(leaseFlag),
	}, logger)
	if err = recovery.Start(); err != nil {
		return err
	}

	router := mux.NewRouter()
	api.Register(router, &api.Context{
		Orchestrator: orchestrator,
		Metrics:      m,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:           listen,
		Handler:        router,
		ReadTimeout:    180 * time.Second,
		WriteTimeout:   180 * time.Second,
		IdleTimeout:    time.Second * 180,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Info("Listening")
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Failed to listen and serve")
		}
	}()

	c := make(chan os.Signal, 1)
	// We'll accept graceful shutdowns when quit via:
	//  - SIGINT (Ctrl+C)
	//  - SIGTERM (Kubernetes pod rolling termination)
	// SIGKILL and SIGQUIT will not be caught.
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	logger.WithField("shutdown-signal", sig.String()).Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), config.GetDuration(shutdownTimeoutFlag))
	defer cancel()

	if err = srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("Failed to shut down the HTTP server cleanly")
	}
	recovery.Stop()

	// Interrupted transactions stay Pending and are rolled back by
	// the next process.
	return orchestrator.Shutdown(ctx)
}

func provisioningStoreFromConfig(database string) (provisioningStore, func(), error) {
	if database == memoryDatabase {
		logger.Warn("Using the in-memory store; transactions will not survive a restart")
		return store.NewMemoryStore(), func() {}, nil
	}

	sqlStore, err := sqlStore(database)
	if err != nil {
		return nil, nil, err
	}
	if err = sqlStore.Migrate(); err != nil {
		sqlStore.Close()
		return nil, nil, errors.Wrap(err, "failed to migrate the database schema")
	}

	return sqlStore, func() { sqlStore.Close() }, nil
}

func buildRegistry(ctx context.Context, config *viper.Viper) (*saga.StepRegistry, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	awsConfig, err := common.NewAWSConfig(ctx, config.GetString(awsRegionFlag))
	if err != nil {
		return nil, err
	}

	clients := &steps.Clients{Bucket: config.GetString(bucketFlag)}
	clients.IAM, clients.S3, clients.Uploader = steps.NewAWSClients(iam.NewFromConfig(awsConfig), s3.NewFromConfig(awsConfig))
	if address := config.GetString(directoryURLFlag); address != "" {
		clients.Directory = directory.NewClient(address, config.GetString(directoryTokenFlag), logger)
	} else {
		logger.Warn("No directory service configured; directory steps will fail")
	}
	if address := config.GetString(ticketingURLFlag); address != "" {
		clients.Ticketing = ticketing.NewClient(address, config.GetString(ticketingTokenFlag), logger)
	} else {
		logger.Warn("No ticketing service configured; ticket steps will fail")
	}

	registry := saga.NewStepRegistry()
	if err = steps.Register(registry, clients); err != nil {
		return nil, err
	}

	kinds := steps.DefaultKinds()
	if path := config.GetString(stepsFileFlag); path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open step catalog %s", path)
		}
		defer file.Close()

		kinds, err = saga.LoadKinds(file)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load step catalog %s", path)
		}
	}
	if err = steps.RegisterKinds(registry, kinds); err != nil {
		return nil, err
	}
	if err = registry.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid step catalog")
	}

	return registry, nil
}
