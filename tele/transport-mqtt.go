package tele

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"

	tele_config "github.com/matthijsvisser/kamstrup-402-mqtt/tele/config"

	"github.com/matthijsvisser/kamstrup-402-mqtt/helpers"
	"github.com/matthijsvisser/kamstrup-402-mqtt/log2"
)

type transportMqtt struct {
	log    *log2.Log
	m      mqtt.Client
	mopt   *mqtt.ClientOptions
	stopCh chan struct{}

	networkTimeout time.Duration
	qos            byte
	retain         bool

	topicValues       string
	topicStatus       string
	topicAvailability string
}

func (self *transportMqtt) Init(log *log2.Log, teleConfig tele_config.Config) error {
	self.log = log.Clone(log2.LInfo)
	mqttLog := log.Clone(log2.LDebug)
	mqtt.CRITICAL = mqttLog
	mqtt.ERROR = mqttLog
	mqtt.WARN = mqttLog
	if teleConfig.LogDebug {
		self.log.SetLevel(log2.LDebug)
		mqtt.DEBUG = mqttLog
	}

	topicPrefix := strings.ToLower(teleConfig.Topic)
	self.topicValues = fmt.Sprintf("%s/values", topicPrefix)
	self.topicStatus = fmt.Sprintf("%s/status", topicPrefix)
	self.topicAvailability = fmt.Sprintf("%s/availability", topicPrefix)
	self.qos = byte(teleConfig.Qos)
	self.retain = teleConfig.Retain

	self.networkTimeout = helpers.IntSecondDefault(teleConfig.NetworkTimeoutSec, defaultNetworkTimeout)
	if self.networkTimeout < 1*time.Second {
		self.networkTimeout = 1 * time.Second
	}
	connectTimeout := self.networkTimeout * 3
	keepaliveTimeout := helpers.IntSecondDefault(teleConfig.KeepaliveSec, self.networkTimeout/2)

	defaultHandler := func(_ mqtt.Client, msg mqtt.Message) {
		self.log.Errorf("unexpected mqtt message: %v", msg)
	}

	scheme := "tcp"
	tlsconf := new(tls.Config)
	if teleConfig.TlsEnabled {
		scheme = "ssl"
		tlsconf.InsecureSkipVerify = teleConfig.TlsInsecure
		if teleConfig.TlsCaCert != "" {
			tlsconf.RootCAs = x509.NewCertPool()
			cabytes, err := ioutil.ReadFile(teleConfig.TlsCaCert)
			if err != nil {
				return errors.Annotate(err, "tls_ca_cert")
			}
			tlsconf.RootCAs.AppendCertsFromPEM(cabytes)
		}
		if teleConfig.TlsCert != "" {
			cert, err := tls.LoadX509KeyPair(teleConfig.TlsCert, teleConfig.TlsKey)
			if err != nil {
				return errors.Annotate(err, "tls_cert/tls_key")
			}
			tlsconf.Certificates = []tls.Certificate{cert}
		}
	}
	broker := fmt.Sprintf("%s://%s:%d", scheme, teleConfig.Host, teleConfig.Port)

	self.mopt = mqtt.NewClientOptions().
		AddBroker(broker).
		SetAutoReconnect(true).
		SetBinaryWill(self.topicAvailability, []byte("offline"), self.qos, true).
		SetCleanSession(true).
		SetClientID(teleConfig.Client).
		SetConnectTimeout(connectTimeout).
		SetDefaultPublishHandler(defaultHandler).
		SetKeepAlive(keepaliveTimeout).
		SetMaxReconnectInterval(connectTimeout).
		SetOrderMatters(false).
		SetPingTimeout(self.networkTimeout).
		SetWriteTimeout(self.networkTimeout).
		SetOnConnectHandler(self.onConnect).
		SetConnectionLostHandler(self.onConnectionLost)
	if teleConfig.Authentication {
		credFun := func() (string, string) {
			return teleConfig.Username, teleConfig.Password
		}
		self.mopt = self.mopt.SetCredentialsProvider(credFun)
	}
	if teleConfig.TlsEnabled {
		self.mopt = self.mopt.SetTLSConfig(tlsconf)
	}
	self.m = mqtt.NewClient(self.mopt)
	self.stopCh = make(chan struct{})

	go self.online()
	return nil
}

func (self *transportMqtt) Close() {
	close(self.stopCh)
	if self.m.IsConnected() {
		// will fires only on dirty disconnect, say goodbye explicitly
		t := self.m.Publish(self.topicAvailability, self.qos, true, []byte("offline"))
		_ = self.tokenWait(t, "publish availability")
		self.m.Disconnect(uint(self.networkTimeout / time.Millisecond))
	}
}

func (self *transportMqtt) SendValues(payload []byte) bool {
	t := self.m.Publish(self.topicValues, self.qos, self.retain, payload)
	err := self.tokenWait(t, "publish values")
	return err == nil
}

func (self *transportMqtt) SendStatus(payload []byte) bool {
	t := self.m.Publish(self.topicStatus, self.qos, false, payload)
	err := self.tokenWait(t, "publish status")
	return err == nil
}

// online connects in background, the broker may well be down while the
// meter is polled, messages wait in the queue.
func (self *transportMqtt) online() {
	for self.isRunning() {
		self.log.Debugf("tele connect before")
		t := self.m.Connect()
		if self.tokenWait(t, "connect") == nil {
			break // success path
		}
		self.log.Debugf("tele connect after")
		time.Sleep(1 * time.Second)
	}
}

func (self *transportMqtt) isRunning() bool {
	select {
	case <-self.stopCh:
		return false
	default:
		return true
	}
}

func (self *transportMqtt) onConnect(c mqtt.Client) {
	self.log.Infof("tele mqtt connected")
	c.Publish(self.topicAvailability, self.qos, true, []byte("online"))
}

func (self *transportMqtt) onConnectionLost(c mqtt.Client, err error) {
	self.log.Infof("tele mqtt disconnected err=%v", err)
}

func (self *transportMqtt) tokenWait(t mqtt.Token, tag string) error {
	if !t.WaitTimeout(self.networkTimeout) {
		err := errors.Errorf("%s timeout", tag)
		self.log.Errorf("tele: MQTT %s", err.Error())
		return err
	}
	if err := t.Error(); err != nil {
		err = errors.Annotate(err, tag)
		self.log.Errorf("tele: MQTT %s", err.Error())
		return err
	}
	return nil
}
