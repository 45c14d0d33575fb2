package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustRegisterAllAgainstFreshRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() { MustRegisterAll(reg) })

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestAddressClaimOutcomesLabelled(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegisterAll(reg)

	AddressClaimOutcomes.WithLabelValues("claimed").Inc()
	mfs, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range mfs {
		if mf.GetName() == "isobus_netmgr_address_claim_outcomes_total" {
			found = true
		}
	}
	assert.True(t, found)
}
