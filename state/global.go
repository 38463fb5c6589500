package state

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/juju/errors"
	alive "github.com/temoto/alive/v2"

	"github.com/matthijsvisser/kamstrup-402-mqtt/helpers"
	"github.com/matthijsvisser/kamstrup-402-mqtt/kamstrup"
	"github.com/matthijsvisser/kamstrup-402-mqtt/log2"
	"github.com/matthijsvisser/kamstrup-402-mqtt/tele"
)

type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Config       *Config
	Log          *log2.Log
	Tele         tele.Teler

	Hardware struct {
		Uarter kamstrup.Uarter // test code injects mock meter
	}

	initMeterOnce sync.Once
	meter         *kamstrup.Session
}

const ContextKey = "run/state-global"

func NewContext(log *log2.Log, teler tele.Teler) (context.Context, *Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}

	g := &Global{
		Alive: alive.NewAlive(),
		Log:   log,
		Tele:  teler,
	}
	ctx := context.Background()
	ctx = context.WithValue(ctx, log2.ContextKey, log)
	ctx = context.WithValue(ctx, ContextKey, g)

	return ctx, g
}

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg

	if g.Config.Persist.Root == "" {
		g.Config.Persist.Root = "./kamstrup-data"
		g.Log.Errorf("config: persist.root=empty changed=%s", g.Config.Persist.Root)
	}
	g.Log.Debugf("config: persist.root=%s", g.Config.Persist.Root)

	errs := make([]error, 0)

	// mqtt section checked first, tele is the remote error reporting
	// mechanism and boots before anything else
	if g.Config.Mqtt.Enabled {
		if g.Config.Mqtt.Host == "" {
			errs = append(errs, errors.NotValidf("config: mqtt.host required"))
		}
		if g.Config.Mqtt.Client == "" {
			errs = append(errs, errors.NotValidf("config: mqtt.client required"))
		}
		if g.Config.Mqtt.Topic == "" {
			errs = append(errs, errors.NotValidf("config: mqtt.topic required"))
		}
		if g.Config.Mqtt.Port == 0 {
			g.Config.Mqtt.Port = 1883
		}
		if q := g.Config.Mqtt.Qos; q < 0 || q > 2 {
			errs = append(errs, errors.NotValidf("config: mqtt.qos=%d", q))
		}
		if g.Config.Mqtt.Authentication && g.Config.Mqtt.Username == "" {
			errs = append(errs, errors.NotValidf("config: mqtt.authentication without mqtt.username"))
		}
	}
	if len(errs) != 0 {
		return helpers.FoldErrors(errs)
	}
	if g.Config.Mqtt.PersistPath == "" {
		g.Config.Mqtt.PersistPath = filepath.Join(g.Config.Persist.Root, "tele")
	}
	if err := g.Tele.Init(g.Log, g.Config.Mqtt); err != nil {
		return errors.Annotate(err, "tele init")
	}

	if g.Config.Serial.ComPort == "" {
		errs = append(errs, errors.NotValidf("config: serial_device.com_port required"))
	}
	if g.Config.Serial.BaudRate == 0 {
		g.Config.Serial.BaudRate = kamstrup.DefaultBaud
	}

	kc := &g.Config.Kamstrup
	if len(kc.Parameters) == 0 {
		errs = append(errs, errors.NotValidf("config: kamstrup.parameters empty"))
	} else if _, err := kamstrup.RegistersByName(kc.Parameters); err != nil {
		errs = append(errs, errors.Annotate(err, "config: kamstrup.parameters"))
	}
	if kc.PollInterval == 0 {
		kc.PollInterval = defaultPollIntervalMin
	}
	if kc.PollInterval < 1 {
		errs = append(errs, errors.NotValidf("config: kamstrup.poll_interval=%d minimum is 1 minute", kc.PollInterval))
	} else if kc.PollInterval >= pollIntervalStandbyMin {
		g.Log.Infof("config: kamstrup.poll_interval=%d minutes, meter may enter standby between polls", kc.PollInterval)
	}
	if kc.Attempts < 0 {
		errs = append(errs, errors.NotValidf("config: kamstrup.attempts=%d", kc.Attempts))
	}

	return helpers.FoldErrors(errs)
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	err := g.Init(ctx, cfg)
	if err != nil {
		g.Log.Fatal(errors.ErrorStack(err))
	}
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Errorf(errors.ErrorStack(err))
		g.Tele.Error(err)
	}
}

// Meter is the lazy singleton serial session. Valid config required
// before the first call.
func (g *Global) Meter() *kamstrup.Session {
	g.initMeterOnce.Do(func() {
		log := g.Log
		if g.Config.Kamstrup.LogDebug {
			log = g.Log.Clone(log2.LDebug)
			log.SetErrorFunc(g.Tele.Error)
		}
		if g.Hardware.Uarter == nil { // production path
			g.Hardware.Uarter = kamstrup.NewSerialUart(log)
		}
		opt := kamstrup.SessionOptions{
			Device:       g.Config.Serial.ComPort,
			Baud:         g.Config.Serial.BaudRate,
			Attempts:     g.Config.Kamstrup.Attempts,
			ReplyTimeout: helpers.IntMillisecondDefault(g.Config.Kamstrup.ReplyTimeoutMs, kamstrup.DefaultReplyTimeout),
			RetryDelay:   helpers.IntMillisecondDefault(g.Config.Kamstrup.RetryDelayMs, kamstrup.DefaultRetryDelay),
			StrictUnits:  g.Config.Kamstrup.StrictUnits,
		}
		g.meter = kamstrup.NewSession(g.Hardware.Uarter, opt, log)
	})
	return g.meter
}

// Stop asks every Alive-bound worker to finish.
func (g *Global) Stop() {
	g.Alive.Stop()
}
