package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"animcentre.org/internal/auth"
	"animcentre.org/internal/config"
	"animcentre.org/internal/httpapi"
	"animcentre.org/internal/obs"
	"animcentre.org/internal/store/pg"
	"animcentre.org/internal/store/redisledger"
	"animcentre.org/internal/stream"
	"animcentre.org/internal/token"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	log.SetFlags(0)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer store.Close()

	// The revocation ledger lives in Redis when an address is configured,
	// otherwise in the revoked_tokens table alongside the credentials.
	var revoked auth.RevocationStore = store
	probe := httpapi.ReadyProbe{DB: store}
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		ledger := redisledger.New(redisClient)
		revoked = ledger
		probe.Ledger = ledger
	}

	codec, err := token.NewCodec(cfg.AuthSecret, cfg.Issuer, cfg.Audience)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	svc, err := auth.NewService(store, revoked, codec,
		auth.WithTokenTTL(cfg.TokenTTL),
		auth.WithLockoutPolicy(cfg.LockoutThreshold, cfg.LockoutWindow),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	if err := svc.EnsureBuiltins(startCtx); err != nil {
		cancelStart()
		log.Fatalf("ensure permission catalog: %v", err)
	}
	if err := bootstrapAdmin(startCtx, svc, cfg); err != nil {
		cancelStart()
		log.Fatalf("bootstrap admin: %v", err)
	}
	cancelStart()

	api := httpapi.New(httpapi.Options{
		Auth:       svc,
		Stream:     stream.New(),
		ReadyProbe: probe,
		Version:    version,
		LoginRate:  float64(cfg.LoginRate),
		LoginBurst: cfg.LoginBurst,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// No write timeout: /v1/events holds SSE connections open.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("starting animcentre-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()
	obs.SetReady(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Println("stopped")
}

// bootstrapAdmin creates the initial administrator account when the
// configured identity does not exist yet. The account receives the director
// role when the seeds have created one.
func bootstrapAdmin(ctx context.Context, svc *auth.Service, cfg config.Config) error {
	if cfg.BootstrapAdminEmail == "" || cfg.BootstrapAdminPassword == "" {
		return nil
	}

	username := cfg.BootstrapAdminEmail
	if at := strings.Index(username, "@"); at > 0 {
		username = username[:at]
	}

	var roleIDs []int64
	roles, err := svc.ListRoles(ctx)
	if err != nil {
		return err
	}
	for _, role := range roles {
		if role.Name == "director" {
			roleIDs = append(roleIDs, role.ID)
			break
		}
	}

	_, err = svc.CreateUser(ctx, auth.NewUser{
		Username: username,
		Email:    cfg.BootstrapAdminEmail,
		Password: cfg.BootstrapAdminPassword,
		RoleIDs:  roleIDs,
	})
	if errors.Is(err, auth.ErrConflict) {
		return nil
	}
	if err == nil {
		log.Printf("bootstrap admin %q created", username)
	}
	return err
}
