package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/StratoEdge/edgekv_sdk_go/internal/devseed"
	"github.com/StratoEdge/edgekv_sdk_go/pkg/edgekv"
	"github.com/StratoEdge/edgekv_sdk_go/pkg/edgekv/mock"
)

type failConfig struct {
	rate float64
	code int
}

func main() {
	addr := flag.String("addr", ":8788", "listen address")
	account := flag.String("account", "sandbox-account", "account id advertised to clients")
	namespace := flag.String("namespace", "sandbox-namespace", "namespace created at startup")
	token := flag.String("token", "sandbox-token", "bearer token required on every request")
	seed := flag.String("seed", "", "path to a JSON or YAML seed file")
	latency := flag.Duration("latency", 0, "artificial latency to inject per request")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	logLevel := flag.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "strato-sandbox",
		Level: hclog.LevelFromString(*logLevel),
	})

	store := mock.New()
	if err := store.CreateNamespace(*namespace); err != nil {
		logger.Error("create namespace", "error", err)
		os.Exit(1)
	}
	if *seed != "" {
		entries, err := devseed.Load(afero.NewOsFs(), *seed)
		if err != nil {
			logger.Error("load seed", "error", err)
			os.Exit(1)
		}
		if err := store.Seed(*namespace, entries); err != nil {
			logger.Error("apply seed", "error", err)
			os.Exit(1)
		}
		logger.Info("namespace seeded", "namespace", *namespace, "entries", len(entries))
	}

	failCfg, err := parseFailConfig(*fail)
	if err != nil {
		logger.Error("parse fail flag", "error", err)
		os.Exit(1)
	}

	handler := mock.NewHandler(store,
		mock.WithAuthToken(*token),
		mock.WithHandlerLogger(logger.Named("kv")),
	)

	server := &http.Server{
		Addr:    *addr,
		Handler: withMiddleware(*latency, failCfg, handler),
	}

	logger.Info("strato-sandbox listening", "addr", *addr, "namespace", *namespace)
	fmt.Println()
	host := *addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	fmt.Printf("export %s=http://%s\n", edgekv.EnvAPIURL, host)
	fmt.Printf("export %s=%s\n", edgekv.EnvAccountID, *account)
	fmt.Printf("export %s=%s\n", edgekv.EnvNamespaceID, *namespace)
	fmt.Printf("export %s=%s\n", edgekv.EnvAPIToken, *token)
	fmt.Println()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func withMiddleware(delay time.Duration, failCfg failConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			time.Sleep(delay)
		}
		if failCfg.rate > 0 && rand.Float64() < failCfg.rate {
			status := failCfg.code
			if status == 0 {
				status = http.StatusInternalServerError
			}
			http.Error(w, "failure injected", status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseFailConfig(raw string) (failConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return failConfig{}, nil
	}
	cfg := failConfig{code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 {
			return failConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		switch strings.TrimSpace(keyVal[0]) {
		case "rate":
			val, err := strconv.ParseFloat(strings.TrimSpace(keyVal[1]), 64)
			if err != nil {
				return failConfig{}, err
			}
			cfg.rate = val
		case "code":
			val, err := strconv.Atoi(strings.TrimSpace(keyVal[1]))
			if err != nil {
				return failConfig{}, err
			}
			cfg.code = val
		default:
			return failConfig{}, fmt.Errorf("unknown fail key %q", keyVal[0])
		}
	}
	return cfg, nil
}
