package prom

import (
	"fmt"
	"sync"

	xhttp "github.com/nimasrn/daily-mass/pkg/http"
	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemDelivery   = "delivery"
	SystemInbound    = "inbound"
	SystemReflection = "reflection"
)

const (
	MetricDispatchedTotal   = "dispatched_total"
	MetricTickSeconds       = "tick_seconds"
	MetricIntentTotal       = "intent_total"
	MetricGenerationSeconds = "generation_seconds"
)

const (
	TypeCounter      = "counter"
	TypeCounterVec   = "counterVec"
	TypeHistogram    = "histogram"
	TypeHistogramVec = "histogramVec"
	TypeGaugeVec     = "gaugeVec"
)

var lockCreateMetricLock = &sync.RWMutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounters = make(map[string]prometheus.Counter)
var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionGaugeVec = make(map[string]*prometheus.GaugeVec)
var MetricCollectionHistogram = make(map[string]prometheus.Histogram)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

// Create registers the service metrics. Until it is called every recorder
// below is a no-op.
func Create(host string, env string, nameSpace string) error {
	defaultLabels = make(prometheus.Labels)
	defaultLabels["env"] = env
	defaultLabels["instance"] = host
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemDelivery, MetricDispatchedTotal, []string{"result"}))
	hasError(createHistogram(SystemDelivery, MetricTickSeconds))
	hasError(createCounterVec(SystemInbound, MetricIntentTotal, []string{"intent"}))
	hasError(createHistogramVec(SystemReflection, MetricGenerationSeconds, []string{"language"}))

	return err
}

func CreateMetric(metricType, metricSubsystem, metricName string, labelsValues ...string) error {
	switch metricType {
	case TypeCounter:
		return createCounter(metricSubsystem, metricName)
	case TypeCounterVec:
		return createCounterVec(metricSubsystem, metricName, labelsValues)
	case TypeHistogram:
		return createHistogram(metricSubsystem, metricName)
	case TypeHistogramVec:
		return createHistogramVec(metricSubsystem, metricName, labelsValues)
	case TypeGaugeVec:
		return createGaugeVec(metricSubsystem, metricName, labelsValues)
	}
	return fmt.Errorf("metric type %s is not defined", metricType)
}

// ListenAndServer blocks serving the default registry on addr.
func ListenAndServer(addr string, url string) error {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer(0, 0)
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "addr", addr, "url", url)
	return s.ListenAndServe(addr)
}

func createCounter(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	if _, ok := MetricCollectionCounters[subsystem+name]; ok {
		return nil
	}
	MetricCollectionCounters[subsystem+name] = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	})
	return register(MetricCollectionCounters[subsystem+name])
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	if _, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		return nil
	}
	MetricCollectionCounterVec[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return register(MetricCollectionCounterVec[subsystem+name])
}

func createHistogram(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	if _, ok := MetricCollectionHistogram[subsystem+name]; ok {
		return nil
	}
	MetricCollectionHistogram[subsystem+name] = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
		Buckets:     prometheus.DefBuckets,
	})
	return register(MetricCollectionHistogram[subsystem+name])
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	if _, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		return nil
	}
	MetricCollectionHistogramVec[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
		// generation calls take seconds, not milliseconds
		Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 20, 40},
	}, labels)
	return register(MetricCollectionHistogramVec[subsystem+name])
}

func createGaugeVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	if _, ok := MetricCollectionGaugeVec[subsystem+name]; ok {
		return nil
	}
	MetricCollectionGaugeVec[subsystem+name] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return register(MetricCollectionGaugeVec[subsystem+name])
}

func register(c prometheus.Collector) error {
	return prometheus.Register(c)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	lockCreateMetricLock.RLock()
	v, ok := MetricCollectionCounterVec[subsystem+name]
	lockCreateMetricLock.RUnlock()
	if ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddHistogram(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	lockCreateMetricLock.RLock()
	v, ok := MetricCollectionHistogram[subsystem+name]
	lockCreateMetricLock.RUnlock()
	if ok {
		v.Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram not found", "subsystem", subsystem, "name", name)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	lockCreateMetricLock.RLock()
	v, ok := MetricCollectionHistogramVec[subsystem+name]
	lockCreateMetricLock.RUnlock()
	if ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

func AddDispatch(result string) {
	IncCounterVec(SystemDelivery, MetricDispatchedTotal, result)
}

func AddTickDuration(seconds float64) {
	AddHistogram(SystemDelivery, MetricTickSeconds, seconds)
}

func AddInboundIntent(intent string) {
	IncCounterVec(SystemInbound, MetricIntentTotal, intent)
}

func AddGenerationDuration(seconds float64, language string) {
	AddHistogramVec(SystemReflection, MetricGenerationSeconds, seconds, language)
}
