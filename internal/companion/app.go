// Package companion routes host events between the configuration page, local
// storage, the glucose source and the watch.
//
// App is not safe for concurrent use on its own: the host delivers every event
// from a single loop (see internal/host), and App relies on that ordering.
package companion

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/textwatch/internal/gate"
	"github.com/srg/textwatch/internal/glucose"
	"github.com/srg/textwatch/internal/protocol"
	"github.com/srg/textwatch/internal/store"
)

// CancelledResponse is what the configuration page returns when the user backs out.
const CancelledResponse = "CANCELLED"

// Sender transmits messages to the watch.
type Sender interface {
	Send(msg protocol.Message, onDelivered func())
}

// Opener shows the external configuration page.
type Opener interface {
	OpenURL(url string) error
}

// Deps are the collaborators an App needs.
type Deps struct {
	Sender Sender
	Store  store.Store
	Opener Opener
	Holder *glucose.Holder // optional, a fresh holder is created when nil
	Logger *logrus.Logger
}

// Options are App settings.
type Options struct {
	ConfigureURL string
	Version      string
}

// App is the companion event router.
type App struct {
	sender  Sender
	store   store.Store
	opener  Opener
	holder  *glucose.Holder
	ready   *gate.Gate
	logger  *logrus.Logger
	options Options
}

// New creates an App and schedules the startup action: once the link is ready,
// the persisted configuration is sent to the watch.
func New(deps Deps, opts Options) *App {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if deps.Holder == nil {
		deps.Holder = glucose.NewHolder()
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.ConfigureURL == "" {
		opts.ConfigureURL = DefaultConfigureURL
	}

	a := &App{
		sender:  deps.Sender,
		store:   deps.Store,
		opener:  deps.Opener,
		holder:  deps.Holder,
		ready:   gate.New(),
		logger:  deps.Logger,
		options: opts,
	}

	a.ready.RunWhenReady(a.sendStoredConfiguration)
	return a
}

// Ready reports whether the link-ready event has been received.
func (a *App) Ready() bool {
	return a.ready.State() == gate.Ready
}

// Pending returns the number of actions waiting for the link.
func (a *App) Pending() int {
	return a.ready.Pending()
}

// Reading returns the current glucose reading.
func (a *App) Reading() glucose.Reading {
	return a.holder.Read()
}

// HandleReady handles the link-ready event.
func (a *App) HandleReady() {
	a.logger.Info("Watch link ready")
	a.ready.SignalReady()
}

// HandleShowConfiguration opens the configuration page with the stored settings.
func (a *App) HandleShowConfiguration() {
	a.ready.RunWhenReady(func() {
		opts, err := store.LoadOptions(a.store)
		if err != nil {
			a.logger.WithError(err).Warn("Failed to load stored configuration")
		}

		url := ConfigurationURL(a.options.ConfigureURL, a.options.Version, opts)
		a.logger.WithField("url", url).Debug("Opening configuration page")
		if err := a.opener.OpenURL(url); err != nil {
			a.logger.WithError(err).Warn("Failed to open configuration page")
		}
	})
}

// HandleWebviewClosed handles the configuration page result.
func (a *App) HandleWebviewClosed(response string) {
	a.logger.WithField("response", response).Debug("Configuration response received")

	if response == "" || response == CancelledResponse {
		a.logger.Info("Configuration cancelled")
		return
	}

	settings, err := protocol.ParseSettings(response)
	if err != nil {
		a.logger.WithError(err).Warn("Error parsing configuration")
		return
	}
	if settings.Vacuous() {
		a.logger.Debug("Configuration response has no known settings, ignoring")
		return
	}

	a.ready.RunWhenReady(func() {
		if err := store.SaveOptions(a.store, response); err != nil {
			a.logger.WithError(err).Warn("Failed to persist configuration")
		}
		a.transmitConfiguration(protocol.EncodeSettings(settings))
	})
}

// HandleAppMessage handles a message received from the watch.
func (a *App) HandleAppMessage(msg protocol.Message) {
	a.logger.WithField("message", msg.String()).Debug("Received message from watch")

	if protocol.RequestsData(msg) {
		a.logger.Info("Watch requested glucose data")
		a.SendGlucose()
	}
}

// UpdateGlucose stores a new reading and pushes it to the watch once the link
// is ready.
func (a *App) UpdateGlucose(value int, opts ...glucose.UpdateOption) glucose.Reading {
	r := a.holder.Update(value, opts...)
	a.logger.WithFields(logrus.Fields{
		"value": r.Value,
		"trend": r.Trend,
	}).Infof("Glucose updated: %d mg/dL, trend: %d", r.Value, r.Trend)

	a.ready.RunWhenReady(a.SendGlucose)
	return r
}

// SendGlucose sends the current reading. Nothing is sent while there is no data.
func (a *App) SendGlucose() {
	r := a.holder.Read()
	if !r.HasData() {
		a.logger.Info("No glucose data to send")
		return
	}

	msg := r.Message()
	a.logger.WithField("message", msg.String()).Info("Sending glucose data")
	a.sender.Send(msg, func() {
		a.logger.Debug("Glucose data delivered")
	})
}

func (a *App) sendStoredConfiguration() {
	text, err := store.LoadOptions(a.store)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to load stored configuration")
	}

	msg, err := protocol.EncodeText(text)
	if err != nil {
		a.logger.WithError(err).Warn("Stored configuration is invalid, sending defaults")
		msg = protocol.EncodeSettings(protocol.Settings{})
	}
	a.transmitConfiguration(msg)
}

func (a *App) transmitConfiguration(msg protocol.Message) {
	a.logger.WithField("message", msg.String()).Info("Sending configuration")
	a.sender.Send(msg, func() {
		a.logger.Debug("Configuration delivered successfully")
	})
}
