package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"hotspot-core/internal/analysis"
	"hotspot-core/internal/config"
	"hotspot-core/internal/eventbus"
	"hotspot-core/internal/graph"
	"hotspot-core/internal/minio"
	"hotspot-core/internal/sqlitestore"
	"hotspot-core/services/hotspotmonitor"
)

func main() {
	mapID := getEnv("MAP_ID", "default")

	// MinIO нужен для профилей, снапшотов и (опционально) журнала событий
	var minioClient *minio.Client
	bucket := getEnv("MINIO_BUCKET", "hotspots")
	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		c, err := minio.NewClient(minio.Config{
			Endpoint:        endpoint,
			AccessKeyID:     getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:          getEnvBool("MINIO_USE_SSL", false),
			Region:          getEnv("MINIO_REGION", "us-east-1"),
		})
		if err != nil {
			log.Fatalf("MinIO client: %v", err)
		}
		minioClient = c
	}

	analysisCfg := loadAnalysisConfig(minioClient, bucket, mapID)

	cfg := hotspotmonitor.Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		MapID:            mapID,
		AnalysisInterval: getEnvDuration("ANALYSIS_INTERVAL", time.Minute),
		SeedEvents:       getEnvInt("SEED_EVENTS", analysisCfg.MaxRawEventsRetained),
		IngestJWTSecret:  os.Getenv("INGEST_JWT_SECRET"),
		IngestLogFile:    os.Getenv("INGEST_LOG_FILE"),
		Analysis:         analysisCfg,
	}

	var deps hotspotmonitor.Deps
	var closers []func()

	if brokers := getEnvBrokers("KAFKA_BROKERS", []string{"redpanda:9092"}); !(len(brokers) == 1 && brokers[0] == "none") {
		deps.Bus = eventbus.NewEventBus(brokers)
	}

	switch backend := getEnv("STORE_BACKEND", "sqlite"); backend {
	case "sqlite":
		db, err := sqlitestore.OpenDB(getEnv("SQLITE_PATH", "hotspots.db"))
		if err != nil {
			log.Fatalf("SQLite: %v", err)
		}
		store := sqlitestore.NewEventStore(db)
		history := sqlitestore.NewCampingHistory(db)
		deps.Store = store
		deps.History = history
		deps.Reporters = append(deps.Reporters, history)
		closers = append(closers, store.Stop, history.Stop, func() { db.Close() })
	case "minio":
		if minioClient == nil {
			log.Fatal("STORE_BACKEND=minio requires MINIO_ENDPOINT")
		}
		store := minio.NewEventStore(minioClient, bucket, 0)
		deps.Store = store
		closers = append(closers, store.Close)
	case "none":
	default:
		log.Fatalf("Unknown STORE_BACKEND %q (sqlite, minio, none)", backend)
	}

	if minioClient != nil {
		snapshots := minio.NewSnapshotWriter(minioClient, bucket)
		deps.Reporters = append(deps.Reporters, snapshots)
		closers = append(closers, snapshots.Close)
	}

	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		connectCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		writer, err := graph.NewNeo4jWriter(connectCtx, uri, getEnv("NEO4J_USER", "neo4j"), getEnv("NEO4J_PASSWORD", "password"))
		cancel()
		if err != nil {
			log.Printf("Warning: Neo4j disabled: %v", err)
		} else {
			campingGraph := graph.NewCampingGraph(writer, mapID)
			deps.Reporters = append(deps.Reporters, campingGraph)
			deps.Campers = writer
			closers = append(closers, campingGraph.Close, func() { writer.Close(context.Background()) })
		}
	}

	service, err := hotspotmonitor.NewService(cfg, deps)
	if err != nil {
		log.Fatalf("HotspotMonitor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down HotspotMonitor...")
		cancel()
	}()

	service.Start(ctx)
	<-ctx.Done()
	service.Stop()
	for _, c := range closers {
		c()
	}
	log.Println("HotspotMonitor stopped.")
}

// loadAnalysisConfig: файл профиля, затем профиль из MinIO, затем значения по умолчанию.
func loadAnalysisConfig(minioClient *minio.Client, bucket, mapID string) analysis.Config {
	var (
		profile *config.Profile
		err     error
	)
	switch {
	case os.Getenv("ANALYSIS_PROFILE_FILE") != "":
		profile, err = config.LoadProfileFile(os.Getenv("ANALYSIS_PROFILE_FILE"))
	case minioClient != nil && os.Getenv("ANALYSIS_PROFILE") != "":
		profile, err = config.NewStore(minioClient, bucket).Resolve(os.Getenv("ANALYSIS_PROFILE"), mapID)
	}
	if err != nil {
		log.Fatalf("Analysis profile: %v", err)
	}
	cfg, err := profile.AnalysisConfig()
	if err != nil {
		log.Fatalf("Analysis profile: %v", err)
	}
	if profile == nil {
		log.Println("Using default analysis profile")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBrokers(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		brokers := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				brokers = append(brokers, trimmed)
			}
		}
		if len(brokers) > 0 {
			return brokers
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
