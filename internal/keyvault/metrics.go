package keyvault

import "github.com/prometheus/client_golang/prometheus"

var (
	derivationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "osnova",
		Subsystem: "keyvault",
		Name:      "derivations_total",
		Help:      "Keys derived and stored, by key type.",
	}, []string{"key_type"})

	vaultRewritesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "osnova",
		Subsystem: "keyvault",
		Name:      "vault_rewrites_total",
		Help:      "Full decrypt-modify-encrypt rewrites of the vault file.",
	})

	lookupMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "osnova",
		Subsystem: "keyvault",
		Name:      "lookup_misses_total",
		Help:      "Public-key lookups that found no entry.",
	})
)

func init() {
	prometheus.MustRegister(derivationsTotal, vaultRewritesTotal, lookupMissesTotal)
}
