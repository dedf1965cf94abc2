// Copyright 2018 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/profiler"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mattressco/storefront/src/frontend/api"
	"github.com/mattressco/storefront/src/frontend/storage"
)

const (
	port         = "8080"
	cookieMaxAge = 60 * 60 * 24 * 30

	cookiePrefix    = "shop_"
	cookieSessionID = cookiePrefix + "session-id"

	defaultStateDB      = "storefront.db"
	defaultLoginTimeout = 10 * time.Second
	defaultMaxIdle      = 720 * time.Hour
)

var (
	baseUrl = ""
)

type ctxKeySessionID struct{}

type frontendServer struct {
	apiAddr         string
	apiFallbackAddr string

	api          *api.Client
	state        storage.Provider
	loginTimeout time.Duration
	locks        contextLocks
}

func main() {
	ctx := context.Background()
	log := newLogger()

	svc := new(frontendServer)

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{}))

	baseUrl = os.Getenv("BASE_URL")

	if os.Getenv("ENABLE_TRACING") == "1" {
		log.Info("Tracing enabled.")
		initTracing(log, ctx)
	} else {
		log.Info("Tracing disabled.")
	}

	if os.Getenv("ENABLE_PROFILER") == "1" {
		log.Info("Profiling enabled.")
		go initProfiling(log, "storefront", "1.0.0")
	} else {
		log.Info("Profiling disabled.")
	}

	srvPort := port
	if os.Getenv("PORT") != "" {
		srvPort = os.Getenv("PORT")
	}
	addr := os.Getenv("LISTEN_ADDR")
	mustMapEnv(&svc.apiAddr, "API_ADDR")
	svc.apiFallbackAddr = os.Getenv("API_FALLBACK_ADDR")
	svc.loginTimeout = durationEnv(log, "LOGIN_TIMEOUT", defaultLoginTimeout)

	svc.api = api.NewClient(api.Config{
		BaseURL:     svc.apiAddr,
		FallbackURL: svc.apiFallbackAddr,
		HTTPClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Log: log,
	})
	if svc.apiFallbackAddr != "" {
		log.Infof("login falls back to %s", svc.apiFallbackAddr)
	}

	state, closeState, err := openState(log, os.Getenv("STATE_DB"))
	if err != nil {
		log.Fatal(err)
	}
	defer closeState()
	svc.state = state

	if db, ok := state.(*storage.BoltDB); ok {
		janitor := startJanitor(log, db, durationEnv(log, "STATE_MAX_IDLE", defaultMaxIdle))
		defer janitor.Stop()
	}

	handler := otelhttp.NewHandler(svc.router(log), "frontend") // add OTel tracing

	log.Infof("starting server on %s:%s", addr, srvPort)
	log.Fatal(http.ListenAndServe(addr+":"+srvPort, handler))
}

func (fe *frontendServer) router(log logrus.FieldLogger) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(baseUrl+"/", fe.homeHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/products", fe.homeHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/product/{id}", fe.productHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/search", fe.searchHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/cart", fe.viewCartHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/cart", fe.addToCartHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/cart/update", fe.updateCartItemHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/cart/remove", fe.removeCartItemHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/cart/empty", fe.emptyCartHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/cart/checkout", fe.placeOrderHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/wishlist", fe.viewWishlistHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/wishlist", fe.addToWishlistHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/wishlist/remove", fe.removeFromWishlistHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/wishlist/empty", fe.emptyWishlistHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/orders", fe.orderHistoryHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/login", fe.loginHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/register", fe.registerHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/verify-otp", fe.verifyOTPHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/logout", fe.logoutHandler).Methods(http.MethodPost, http.MethodGet)
	r.HandleFunc(baseUrl+"/session", fe.sessionHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/profile", fe.profileHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/profile", fe.updateProfileHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/profile/addresses", fe.addressesHandler).Methods(http.MethodGet, http.MethodHead)

	admin := r.PathPrefix(baseUrl + "/admin").Subrouter()
	admin.Use(fe.requireAdmin)
	admin.HandleFunc("/orders", fe.adminOrdersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}/status", fe.adminOrderStatusHandler).Methods(http.MethodPost)
	admin.HandleFunc("/users", fe.adminUsersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/products", fe.adminSaveProductHandler).Methods(http.MethodPost)
	admin.HandleFunc("/products/{id}", fe.adminSaveProductHandler).Methods(http.MethodPost)
	admin.HandleFunc("/products/{id}/delete", fe.adminDeleteProductHandler).Methods(http.MethodPost)

	r.HandleFunc(baseUrl+"/robots.txt", func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, "User-agent: *\nDisallow: /") })
	r.HandleFunc(baseUrl+"/_healthz", func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, "ok") })

	var handler http.Handler = r
	handler = &logHandler{log: log, next: handler} // add logging
	handler = ensureSessionID(handler)             // add session ID
	return handler
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.Level = logrus.DebugLevel
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.Level = lvl
	}
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout
	if path := os.Getenv("LOG_FILE"); path != "" {
		log.Out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    64,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
	}
	return log
}

// openState picks the storage backend named by STATE_DB.
func openState(log logrus.FieldLogger, path string) (storage.Provider, func(), error) {
	switch path {
	case "none":
		log.Warn("durable storage disabled, state will not survive requests")
		return storage.Unavailable{}, func() {}, nil
	case "memory":
		log.Info("using in-memory state")
		return storage.NewMemoryPool(), func() {}, nil
	case "":
		path = defaultStateDB
	}
	db, err := storage.OpenBolt(path, log)
	if err != nil {
		return nil, nil, err
	}
	log.Infof("state stored in %s", path)
	return db, func() {
		if err := db.Close(); err != nil {
			log.WithField("error", err).Warn("failed to close state db")
		}
	}, nil
}

// startJanitor drops browsing contexts idle for longer than maxIdle.
func startJanitor(log logrus.FieldLogger, db *storage.BoltDB, maxIdle time.Duration) *cron.Cron {
	c := cron.New()
	c.AddFunc("@every 1h", func() {
		if _, err := db.Prune(maxIdle); err != nil {
			log.WithField("error", err).Warn("state prune failed")
		}
	})
	c.Start()
	return c
}

func initTracing(log logrus.FieldLogger, ctx context.Context) (*sdktrace.TracerProvider, error) {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	log.Info("Tracing provider initialized (no exporter configured)")
	return tp, nil
}

func initProfiling(log logrus.FieldLogger, service, version string) {
	for i := 1; i <= 3; i++ {
		log = log.WithField("retry", i)
		if err := profiler.Start(profiler.Config{
			Service:        service,
			ServiceVersion: version,
			// ProjectID must be set if not running on GCP.
			// ProjectID: "my-project",
		}); err != nil {
			log.Warnf("warn: failed to start profiler: %+v", err)
		} else {
			log.Info("started Stackdriver profiler")
			return
		}
		d := time.Second * 10 * time.Duration(i)
		log.Debugf("sleeping %v to retry initializing Stackdriver profiler", d)
		time.Sleep(d)
	}
	log.Warn("warning: could not initialize Stackdriver profiler after retrying, giving up")
}

func mustMapEnv(target *string, envKey string) {
	v := os.Getenv(envKey)
	if v == "" {
		panic(fmt.Sprintf("environment variable %q not set", envKey))
	}
	*target = v
}

func durationEnv(log logrus.FieldLogger, envKey string, def time.Duration) time.Duration {
	v := os.Getenv(envKey)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warnf("ignoring invalid %s=%q, using %v", envKey, v, def)
		return def
	}
	return d
}
