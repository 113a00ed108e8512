// Package baseapp contains the shared bootstrap for our HTTP applications:
// common flags, a chi router with security and logging middleware, static
// resource serving, and a Prometheus metrics server on its own port.
package baseapp

import (
	"flag"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/secure"

	"github.com/atalyaalon/patents-topic-modeling/go/httputils"
	"github.com/atalyaalon/patents-topic-modeling/go/sklog"
)

var (
	// Local is true if we are running locally, as opposed to in production.
	Local = flag.Bool("local", false, "Running locally if true. As opposed to in production.")

	// Port is the HTTP service address, e.g. ":8000".
	Port = flag.String("port", ":8000", "HTTP service address.")

	// PromPort is the metrics service address.
	PromPort = flag.String("prom_port", ":20000", "Metrics service address.")

	// ResourcesDir is the directory with HTML templates, static assets, and
	// the page config file.
	ResourcesDir = flag.String("resources_dir", "", "The directory to find templates, JS, and CSS files.")
)

// App is the interface that Constructor returns.
type App interface {
	// AddHandlers is called by Serve and the receiver must add all handlers
	// to the passed in router.
	AddHandlers(r chi.Router)

	// AddMiddleware returns any additional middleware for the app.
	AddMiddleware() []func(http.Handler) http.Handler
}

// Constructor is a function that builds an App instance. It is only called
// after flags have been parsed.
type Constructor func() (App, error)

// cspString returns a Content-Security-Policy that only allows scripts with
// the per-request nonce. Running locally additionally allows eval so that
// tools like webpack-dev-server work.
func cspString(local bool) string {
	addScriptSrc := ""
	if local {
		addScriptSrc = "'unsafe-eval'"
	}
	clauses := []string{
		"base-uri 'none'",
		"img-src 'self'",
		"object-src 'none'",
		"style-src 'self' 'unsafe-inline'",
		"script-src 'strict-dynamic' $NONCE " + addScriptSrc + " 'unsafe-inline' https: http:",
	}
	return strings.Join(clauses, "; ") + ";"
}

// SecurityMiddleware sets the CSP and related headers for every response.
func SecurityMiddleware(allowedHosts []string) func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		AllowedHosts:          allowedHosts,
		HostsProxyHeaders:     []string{"X-Forwarded-Host"},
		SSLRedirect:           !*Local,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		STSSeconds:            60 * 60 * 24 * 365,
		STSIncludeSubdomains:  true,
		ContentSecurityPolicy: cspString(*Local),
		IsDevelopment:         *Local,
	})
	return secureMiddleware.Handler
}

// Serve builds the App from the given constructor and runs the HTTP server
// until it fails, at which point the process exits. allowedHosts is the
// list of domains the server responds to in production.
func Serve(constructor Constructor, allowedHosts []string) {
	flag.Parse()

	app, err := constructor()
	if err != nil {
		sklog.Fatalf("Failed to construct app: %s", err)
	}

	r := chi.NewRouter()
	r.Use(httputils.LoggingRequestResponse)
	r.Use(SecurityMiddleware(allowedHosts))
	for _, m := range app.AddMiddleware() {
		r.Use(m)
	}
	r.Get("/healthz", httputils.HealthCheckHandler)
	if *ResourcesDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(*ResourcesDir))))
	}
	app.AddHandlers(r)

	// Metrics are served on their own port so they are never exposed
	// through the load balancer.
	go func() {
		metricsRouter := chi.NewRouter()
		metricsRouter.Handle("/metrics", promhttp.Handler())
		sklog.Fatal(http.ListenAndServe(*PromPort, metricsRouter))
	}()

	server := &http.Server{
		Addr:              *Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	sklog.Infof("Ready to serve on port %s", *Port)
	sklog.Fatal(server.ListenAndServe())
}
