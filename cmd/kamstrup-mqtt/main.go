// Daemon: polls a Kamstrup Multical 402 heat meter over the optical
// head and publishes readings to MQTT.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"

	"github.com/matthijsvisser/kamstrup-402-mqtt/log2"
	"github.com/matthijsvisser/kamstrup-402-mqtt/poller"
	"github.com/matthijsvisser/kamstrup-402-mqtt/state"
	"github.com/matthijsvisser/kamstrup-402-mqtt/tele"
)

var log = log2.NewStderr(log2.LInfo)

var BuildVersion string = "unknown" // set by ldflags -X

func main() {
	flagConfig := flag.String("config", "config.yaml", "")
	flagVersion := flag.Bool("version", false, "print build version and exit")
	flag.Parse()

	if *flagVersion {
		os.Stdout.WriteString("kamstrup-mqtt " + BuildVersion + "\n")
		return
	}

	if sdnotify("start") {
		// under systemd assume journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}
	log.Infof("kamstrup-mqtt %s starting", BuildVersion)

	ctx, g := state.NewContext(log, tele.New())
	g.BuildVersion = BuildVersion
	g.MustInit(ctx, state.MustReadConfig(log, state.NewOsFullReader(), *flagConfig))
	log.Debugf("config=%+v", g.Config)

	// remote error reporting once tele is up
	log.SetErrorFunc(g.Tele.Error)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Infof("stop requested")
		g.Stop()
	}()

	sdnotify(daemon.SdNotifyReady)
	go poller.Run(ctx)

	g.Alive.Wait()
	sdnotify(daemon.SdNotifyStopping)
	if err := g.Meter().Close(); err != nil {
		log.Errorf("meter close: %v", err)
	}
	g.Tele.Close()
	log.Infof("bye")
}

func sdnotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}
