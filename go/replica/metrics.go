package replica

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var viewGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "vr_replica_view",
	Help: "current view number of a replica",
}, []string{"group", "replica"})

var opNumberGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "vr_replica_op_number",
	Help: "highest log position a replica has appended",
}, []string{"group", "replica"})

var committedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "vr_replica_committed",
	Help: "highest log position a replica has committed",
}, []string{"group", "replica"})

var statusGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "vr_replica_status",
	Help: "replica status as an enum value (0=normal, 1=view-change, 2=recovering)",
}, []string{"group", "replica"})

var viewChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vr_replica_view_changes_total",
	Help: "counter of view changes a replica has initiated or adopted",
}, []string{"group", "replica"})

var mailboxDepthGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "vr_replica_mailbox_depth",
	Help: "number of envelopes queued inbound at the end of a poll",
}, []string{"group", "replica"})

func (r *Replica) reportMetrics() {
	var group, idx = r.self.Group.String(), strconv.Itoa(r.self.Index)
	viewGauge.WithLabelValues(group, idx).Set(float64(r.view))
	opNumberGauge.WithLabelValues(group, idx).Set(float64(r.opNumber))
	committedGauge.WithLabelValues(group, idx).Set(float64(r.committed))
	statusGauge.WithLabelValues(group, idx).Set(float64(r.status))
	mailboxDepthGauge.WithLabelValues(group, idx).Set(float64(r.mailbox.Len()))
}
