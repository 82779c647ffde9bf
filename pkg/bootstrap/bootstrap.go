package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	shared "github.com/agentflow/onboarding/pkg"
	"github.com/agentflow/onboarding/pkg/infrastructure/database"
	"github.com/agentflow/onboarding/pkg/infrastructure/identity"
	infrapubsub "github.com/agentflow/onboarding/pkg/infrastructure/pubsub"
	infrasentry "github.com/agentflow/onboarding/pkg/infrastructure/sentry"
	infrastorage "github.com/agentflow/onboarding/pkg/infrastructure/storage"
	"github.com/agentflow/onboarding/pkg/onboarding"
	"github.com/agentflow/onboarding/pkg/storage/memory"
)

const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

// Config holds standard configuration for all services
type Config struct {
	ProjectID                 string
	EnablePublish             bool
	DocumentBucket            string
	NotificationTopic         string
	PrivilegedCredentialsFile string
	SentryDSN                 string
	SentryEnvironment         string
	Port                      string
	Store                     string
	MaxUploadBytes            int64
}

// Service holds initialized dependencies
type Service struct {
	Onboarding *onboarding.Service
	Store      shared.Store
	Blobs      shared.BlobStore
	Pub        shared.Publisher
	Verifier   shared.TokenVerifier
	Firestore  *firestore.Client
	Firebase   *firebase.App
	Config     *Config
	Logger     *slog.Logger
}

// LoadConfig reads configuration from environment variables
func LoadConfig() *Config {
	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		projectID = shared.ProjectID // Fallback
	}

	cfg := &Config{
		ProjectID:                 projectID,
		EnablePublish:             os.Getenv("ENABLE_PUBLISH") == "true",
		DocumentBucket:            os.Getenv("DOCUMENT_BUCKET"),
		NotificationTopic:         envOr("NOTIFICATION_TOPIC", shared.TopicOnboardingNotifications),
		PrivilegedCredentialsFile: os.Getenv("PRIVILEGED_CREDENTIALS_FILE"),
		SentryDSN:                 os.Getenv("SENTRY_DSN"),
		SentryEnvironment:         envOr("SENTRY_ENVIRONMENT", "development"),
		Port:                      envOr("PORT", "8080"),
		Store:                     strings.ToLower(envOr("STORE", StoreFirestore)),
		MaxUploadBytes:            shared.DefaultMaxUploadBytes,
	}
	if v, err := strconv.ParseInt(os.Getenv("MAX_UPLOAD_BYTES"), 10, 64); err == nil && v > 0 {
		cfg.MaxUploadBytes = v
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetSlogHandlerOptions returns standard handler options for GCP
func GetSlogHandlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Map standard keys to Cloud Logging keys
			if a.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: a.Value}
			}
			if a.Key == slog.LevelKey {
				return slog.Attr{Key: "severity", Value: a.Value}
			}
			return a
		},
	}
}

// ComponentHandler wraps a slog.Handler to prepend [component] to the message
type ComponentHandler struct {
	slog.Handler
	component string
}

// WithGroup implements slog.Handler
func (h *ComponentHandler) WithGroup(name string) slog.Handler {
	return &ComponentHandler{
		Handler:   h.Handler.WithGroup(name),
		component: h.component,
	}
}

// WithAttrs implements slog.Handler
func (h *ComponentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	comp := h.component
	for _, a := range attrs {
		if a.Key == "component" {
			comp = a.Value.String()
		}
	}
	return &ComponentHandler{
		Handler:   h.Handler.WithAttrs(attrs),
		component: comp,
	}
}

// Handle implements slog.Handler
func (h *ComponentHandler) Handle(ctx context.Context, r slog.Record) error {
	comp := h.component
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			comp = a.Value.String()
			return false
		}
		return true
	})

	if comp != "" {
		// The component attribute stays in the structured payload.
		prefixed := slog.NewRecord(r.Time, r.Level, fmt.Sprintf("[%s] %s", comp, r.Message), r.PC)
		r.Attrs(func(a slog.Attr) bool {
			prefixed.AddAttrs(a)
			return true
		})
		r = prefixed
	}

	return h.Handler.Handle(ctx, r)
}

// ParseLevel maps LOG_LEVEL values to slog levels, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger creates a configured logger instance
func NewLogger(serviceName string) *slog.Logger {
	opts := GetSlogHandlerOptions(ParseLevel(os.Getenv("LOG_LEVEL")))
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(&ComponentHandler{Handler: handler}).With("service", serviceName)
}

// NewService initializes all standard dependencies
func NewService(ctx context.Context, serviceName string) (*Service, error) {
	cfg := LoadConfig()
	logger := NewLogger(serviceName)
	slog.SetDefault(logger)

	logger.Info("Initializing service", "project_id", cfg.ProjectID, "store", cfg.Store)

	if err := infrasentry.Init(infrasentry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		ServerName:       serviceName,
		TracesSampleRate: 0.1,
	}, logger); err != nil {
		return nil, err
	}

	svc := &Service{Config: cfg, Logger: logger}

	// Store
	switch cfg.Store {
	case StoreMemory:
		svc.Store = memory.New()
		logger.Warn("Store: MEMORY (state is lost on restart)")
	case StoreFirestore:
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("Firestore init failed", "error", err)
			return nil, fmt.Errorf("firestore init: %w", err)
		}
		svc.Firestore = fsClient
		svc.Store = database.NewFirestoreAdapter(fsClient)
	default:
		return nil, fmt.Errorf("unknown STORE %q", cfg.Store)
	}

	// Storage
	if cfg.DocumentBucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			logger.Error("Storage init failed", "error", err)
			return nil, fmt.Errorf("storage init: %w", err)
		}
		svc.Blobs = infrastorage.NewStorageAdapter(gcsClient, cfg.DocumentBucket)
	} else {
		svc.Blobs = memory.NewBlobs()
		logger.Warn("Storage: MEMORY (DOCUMENT_BUCKET not set)")
	}

	// Pub/Sub
	if cfg.EnablePublish {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("PubSub init failed", "error", err)
			return nil, fmt.Errorf("pubsub init: %w", err)
		}
		svc.Pub = &infrapubsub.PubSubAdapter{Client: psClient}
		logger.Info("Pub/Sub: REAL (ENABLE_PUBLISH=true)")
	} else {
		svc.Pub = &infrapubsub.LogPublisher{Logger: logger}
		logger.Info("Pub/Sub: MOCK (LogPublisher)")
	}

	// Identity
	if cfg.Store == StoreMemory {
		svc.Verifier = identity.DevVerifier{}
		logger.Warn("Auth: DEV tokens accepted")
	} else {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID})
		if err != nil {
			return nil, fmt.Errorf("firebase init: %w", err)
		}
		svc.Firebase = app
		if svc.Verifier, err = identity.NewFirebaseVerifier(ctx, app); err != nil {
			return nil, err
		}
	}

	admin, err := newPrivilegedAdmin(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := onboarding.Options{
		Store:          svc.Store,
		Blobs:          svc.Blobs,
		Dispatcher:     infrapubsub.NewEventDispatcher(svc.Pub, cfg.NotificationTopic),
		Logger:         logger,
		Reporter:       infrasentry.Reporter(logger),
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	if admin != nil {
		opts.Identity = admin
	}
	if svc.Onboarding, err = onboarding.New(opts); err != nil {
		return nil, err
	}
	return svc, nil
}

// newPrivilegedAdmin builds the approval gate's identity client from its own
// service-account credential. Without one, approval is disabled.
func newPrivilegedAdmin(ctx context.Context, cfg *Config, logger *slog.Logger) (*identity.FirebaseAdmin, error) {
	if cfg.PrivilegedCredentialsFile == "" {
		logger.Warn("Approval gate disabled (PRIVILEGED_CREDENTIALS_FILE not set)")
		return nil, nil
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID},
		option.WithCredentialsFile(cfg.PrivilegedCredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("privileged firebase init: %w", err)
	}
	return identity.NewFirebaseAdmin(ctx, app)
}

// Close drains pending notifications and releases clients.
func (s *Service) Close() {
	if s.Onboarding != nil {
		s.Onboarding.Wait()
	}
	if s.Firestore != nil {
		if err := s.Firestore.Close(); err != nil {
			s.Logger.Warn("Firestore close failed", "error", err)
		}
	}
	infrasentry.Flush(2 * time.Second)
}
