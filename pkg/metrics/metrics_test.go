package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegister(t *testing.T) {
	assert.Equal(t, prometheus.DefaultRegisterer, GetRegisterer())

	registry := prometheus.NewRegistry()
	Register(registry)
	Register(registry)
	assert.Equal(t, registry, GetRegisterer())

	ConversionTotal.WithLabelValues("json", "default", DirectionDown, StatusSuccess).Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(ConversionTotal.WithLabelValues("json", "default", DirectionDown, StatusSuccess)))

	ContainerNum.WithLabelValues("json", "default", "custom").Set(2)
	assert.Equal(t, float64(2), testutil.ToFloat64(ContainerNum.WithLabelValues("json", "default", "custom")))
}
