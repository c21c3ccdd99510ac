package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fulldump/box"

	"github.com/fulldump/inceptiontx/api"
	"github.com/fulldump/inceptiontx/configuration"
	"github.com/fulldump/inceptiontx/database"
	"github.com/fulldump/inceptiontx/logger"
	"github.com/fulldump/inceptiontx/service"
)

var VERSION = "dev"

func Bootstrap(c *configuration.Configuration) (start, stop func(), err error) {

	log := logger.For(logger.ComponentAPI)

	db := database.NewDatabase(&database.Config{
		Dir:        c.Dir,
		Codec:      c.Codec,
		SyncWrites: c.SyncWrites,
		Logger:     logger.For(logger.ComponentDatabase),
	})

	s := service.NewService(db, &service.Options{
		MaxHookPasses: c.MaxHookPasses,
		Logger:        logger.For(logger.ComponentService),
	})

	b := api.Build(s, VERSION, c.ApiKey, c.ApiSecret)
	if c.EnableCompression {
		b.WithInterceptors(api.Compression)
	}
	b.WithInterceptors(
		api.AccessLog(log),
		api.InterceptorUnavailable(db),
		api.RecoverFromPanic(log),
		api.PrettyErrorInterceptor,
	)

	server := &http.Server{
		Addr:    c.HttpAddr,
		Handler: box.Box2Http(b),
	}

	if c.HttpsSelfsigned {
		log.Infow("https with a self signed certificate")
		certificate, err := selfSignedCertificate()
		if err != nil {
			return nil, nil, err
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{certificate},
		}
	}

	ln, err := net.Listen("tcp", c.HttpAddr)
	if err != nil {
		return nil, nil, err
	}
	log.Infow("listening", "addr", c.HttpAddr, "https", c.HttpsEnabled)

	stopOnce := sync.Once{}
	stop = func() {
		stopOnce.Do(func() {
			if err := server.Shutdown(context.Background()); err != nil {
				log.Errorw("http shutdown", "err", err)
			}
			if err := db.Stop(); err != nil {
				log.Errorw("database stop", "err", err)
			}
		})
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		for sig := range signalChan {
			log.Infow("signal received", "signal", sig.String())
			stop()
		}
	}()

	start = func() {

		wg := &sync.WaitGroup{}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := db.Start(); err != nil {
				log.Errorw("database", "err", err)
				stop()
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if c.HttpsEnabled {
				err = server.ServeTLS(ln, "", "")
			} else {
				err = server.Serve(ln)
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("http server", "err", err)
			}
		}()

		wg.Wait()
	}

	return
}
