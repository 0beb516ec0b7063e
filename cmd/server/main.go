package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"stackcraft.ai/internal/persistence/indexdb"
	persistlog "stackcraft.ai/internal/persistence/log"
	"stackcraft.ai/internal/sim/catalogs"
	"stackcraft.ai/internal/sim/economy"
	"stackcraft.ai/internal/sim/session"
	"stackcraft.ai/internal/sim/tuning"
	"stackcraft.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "configs", "catalog directory (items.json, recipes.json, loot/)")
		tuningPath = flag.String("tuning", "", "tuning file (default <configs>/tuning.yaml)")
		journalDir = flag.String("journal", "", "journal directory (overrides tuning)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite change index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	if *tuningPath == "" {
		*tuningPath = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning file %s not found; using defaults", *tuningPath)
		tune = tuning.Defaults()
	}
	if *journalDir != "" {
		tune.Journal.Dir = *journalDir
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	eco := economy.New(logger)
	if err := eco.Install(cats, tune.LootSeed); err != nil {
		logger.Fatalf("install catalogs: %v", err)
	}
	defer eco.Close()

	sess := session.New(session.Config{
		InventorySize: tune.InventorySize,
		HandEnabled:   tune.HandEnabled,
		InboxSize:     tune.Session.InboxSize,
		TuningDigest:  tuningDigest(tune),
	}, eco, cats, logger)

	var (
		changeLogs []session.ChangeLogger
		auditLogs  []session.AuditLogger
	)
	if tune.Journal.Enabled {
		changes := persistlog.NewChangeLogger(tune.Journal.Dir)
		audits := persistlog.NewAuditLogger(tune.Journal.Dir)
		defer changes.Close()
		defer audits.Close()
		changeLogs = append(changeLogs, changes)
		auditLogs = append(auditLogs, audits)
	}

	idx, err := openRuntimeIndex(tune, *disableDB)
	if err != nil {
		logger.Printf("index disabled: %v", err)
		idx = nil
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index catalogs: %v", err)
		}
		changeLogs = append(changeLogs, idx)
		auditLogs = append(auditLogs, idx)
	}
	if len(changeLogs) > 0 {
		sess.SetChangeLogger(multiChangeLogger(changeLogs))
		sess.SetAuditLogger(multiAuditLogger(auditLogs))
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		_ = sess.Run(ctx)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, sess.Metrics(), idx)
	})

	enableAdminHTTP := envBool("SC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("SC_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				Metrics    session.Metrics `json:"metrics"`
				Index      *indexdb.Stats  `json:"index,omitempty"`
				LootTables []string        `json:"loot_tables"`
				Recipes    int             `json:"recipes"`
			}{
				Metrics:    sess.Metrics(),
				LootTables: eco.TableNames(),
				Recipes:    eco.Recipes.Len(),
			}
			if idx != nil {
				st := idx.Stats()
				resp.Index = &st
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/catalogs", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]string{
				"items":   cats.Items.Digest,
				"recipes": cats.Recipes.Digest,
				"loot":    cats.Loot.Digest,
				"tuning":  tuningDigest(tune),
			})
		})
	} else {
		logger.Printf("admin endpoints disabled (SC_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (SC_ENABLE_PPROF_HTTP=false)")
	}
	idle := time.Duration(tune.Session.IdleTimeoutMs) * time.Millisecond
	mux.HandleFunc("/v1/ws", ws.NewServer(sess, idle, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

type multiChangeLogger []session.ChangeLogger

func (m multiChangeLogger) WriteChange(e session.ChangeEntry) error {
	var first error
	for _, l := range m {
		if err := l.WriteChange(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type multiAuditLogger []session.AuditLogger

func (m multiAuditLogger) WriteAudit(e session.AuditEntry) error {
	var first error
	for _, l := range m {
		if err := l.WriteAudit(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func writeMetrics(rw http.ResponseWriter, m session.Metrics, idx runtimeIndex) {
	fmt.Fprintf(rw, "stackcraft_clients %d\n", m.Clients)
	fmt.Fprintf(rw, "stackcraft_ops_total %d\n", m.OpsTotal)
	fmt.Fprintf(rw, "stackcraft_ops_failed_total %d\n", m.OpsFailed)
	fmt.Fprintf(rw, "stackcraft_dropped_messages_total %d\n", m.Dropped)
	fmt.Fprintf(rw, "stackcraft_queue_depth{queue=\"inbox\"} %d\n", m.QueueDepths.Inbox)
	fmt.Fprintf(rw, "stackcraft_queue_depth{queue=\"join\"} %d\n", m.QueueDepths.Join)
	fmt.Fprintf(rw, "stackcraft_queue_depth{queue=\"leave\"} %d\n", m.QueueDepths.Leave)
	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "stackcraft_index_drop_total{kind=\"change\"} %d\n", s.DropChangeTotal)
	fmt.Fprintf(rw, "stackcraft_index_drop_total{kind=\"audit\"} %d\n", s.DropAuditTotal)
	fmt.Fprintf(rw, "stackcraft_index_queue_depth %d\n", s.QueueDepth)
	fmt.Fprintf(rw, "stackcraft_index_queue_capacity %d\n", s.QueueCapacity)
}

func tuningDigest(t tuning.Tuning) string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
