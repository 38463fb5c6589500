package state

import (
	"path/filepath"
	"sync"

	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"

	tele_config "github.com/matthijsvisser/kamstrup-402-mqtt/tele/config"

	"github.com/matthijsvisser/kamstrup-402-mqtt/helpers"
	"github.com/matthijsvisser/kamstrup-402-mqtt/log2"
)

// Poll interval above this is reported to push the meter into standby
// between polls, answers get slow and flaky then.
const pollIntervalStandbyMin = 30

const defaultPollIntervalMin = 28

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `yaml:"include"`

	Mqtt tele_config.Config `yaml:"mqtt"`

	Serial struct {
		ComPort  string `yaml:"com_port"`
		BaudRate int    `yaml:"baud_rate"`
	} `yaml:"serial_device"`

	Kamstrup struct { //nolint:maligned
		Parameters     []string `yaml:"parameters"`
		PollInterval   int      `yaml:"poll_interval"` // minutes
		Attempts       int      `yaml:"attempts"`
		ReplyTimeoutMs int      `yaml:"reply_timeout_ms"`
		RetryDelayMs   int      `yaml:"retry_delay_ms"`
		StrictUnits    bool     `yaml:"strict_units"`
		LogDebug       bool     `yaml:"log_debug"`
	} `yaml:"kamstrup"`

	Persist struct {
		Root string `yaml:"root"`
	} `yaml:"persist"`

	_copy_guard sync.Mutex //nolint:unused
}

type ConfigSource struct {
	Name     string `yaml:"name"`
	Optional bool   `yaml:"optional"`
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		log.Fatalf("config duplicate source=%s", source.Name)
	} else {
		log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	}
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
			return
		}
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = yaml.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		log.Fatal("code error [Must]ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
