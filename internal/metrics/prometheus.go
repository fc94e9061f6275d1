package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Outcome label values.
const (
	OutcomeSuccess   = "success"
	OutcomeRevoked   = "revoked"
	OutcomeTransient = "transient"
	OutcomeFailure   = "failure"
)

var (
	TokenRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "focusboard_token_refresh_total",
		Help: "Provider token refresh attempts by provider and outcome.",
	}, []string{"provider", "outcome"})

	TokenDecryptFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "focusboard_token_decrypt_failures_total",
		Help: "Stored token envelopes that could not be decrypted and were dropped.",
	})

	ProviderConnectTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "focusboard_provider_connect_total",
		Help: "OAuth callbacks by provider and reason code.",
	}, []string{"provider", "reason"})

	ProviderDisconnectTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "focusboard_provider_disconnect_total",
		Help: "Provider disconnects by provider.",
	}, []string{"provider"})

	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "focusboard_logins_success_total",
		Help: "Total number of successful application logins.",
	})

	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "focusboard_logins_failure_total",
		Help: "Total number of failed application logins.",
	})

	LogoutTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "focusboard_logouts_total",
		Help: "Total number of logouts.",
	})
)

// InitCustomMetrics registers the custom Prometheus metrics.
// It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}

	collectors := map[string]prometheus.Collector{
		"TokenRefreshTotal":        TokenRefreshTotal,
		"TokenDecryptFailureTotal": TokenDecryptFailureTotal,
		"ProviderConnectTotal":     ProviderConnectTotal,
		"ProviderDisconnectTotal":  ProviderDisconnectTotal,
		"LoginSuccessTotal":        LoginSuccessTotal,
		"LoginFailureTotal":        LoginFailureTotal,
		"LogoutTotal":              LogoutTotal,
	}

	for name, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to register metric")
		}
	}

	log.Info().Msg("Custom Prometheus metrics registered.")
}
