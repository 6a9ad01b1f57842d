package slotstore

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts slot-store activity. All counters are optional: a
// store without a registerer keeps nil metrics and skips recording.
type Metrics struct {
	PageReads    prometheus.Counter
	PagesMissing prometheus.Counter
	SlotWrites   prometheus.Counter
	EditsSkipped prometheus.Counter
	CacheHits    prometheus.Counter
}

// NewMetrics creates the slot-store metrics and registers them with
// reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PageReads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "osw_slotstore_page_reads_total",
			Help: "Pages fetched from the wiki",
		}),
		PagesMissing: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "osw_slotstore_pages_missing_total",
			Help: "Requested pages that did not exist",
		}),
		SlotWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "osw_slotstore_slot_writes_total",
			Help: "Slots uploaded by edits",
		}),
		EditsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "osw_slotstore_edits_skipped_total",
			Help: "Edits skipped because no slot changed",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "osw_slotstore_cache_hits_total",
			Help: "Page reads served from the in-memory cache",
		}),
	}
	reg.MustRegister(m.PageReads, m.PagesMissing, m.SlotWrites, m.EditsSkipped, m.CacheHits)
	return m
}

func (m *Metrics) incPageReads() {
	if m != nil {
		m.PageReads.Inc()
	}
}

func (m *Metrics) incPagesMissing() {
	if m != nil {
		m.PagesMissing.Inc()
	}
}

func (m *Metrics) addSlotWrites(n int) {
	if m != nil {
		m.SlotWrites.Add(float64(n))
	}
}

func (m *Metrics) incEditsSkipped() {
	if m != nil {
		m.EditsSkipped.Inc()
	}
}

func (m *Metrics) incCacheHits() {
	if m != nil {
		m.CacheHits.Inc()
	}
}
