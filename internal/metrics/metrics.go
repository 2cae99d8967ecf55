package metrics

import "expvar"

// 检测进程
var (
	Cycles          = expvar.NewInt("cycles")
	Candidates      = expvar.NewInt("candidates")
	PrefilterHits   = expvar.NewInt("prefilter_hits")
	Enrichments     = expvar.NewInt("enrichments")
	Confirmations   = expvar.NewInt("confirmations")
	Alerts          = expvar.NewInt("alerts")
	ChannelFailures = expvar.NewInt("channel_failures")
	PersistFailures = expvar.NewInt("persist_failures")
)

// 采集进程
var (
	Harvests        = expvar.NewInt("harvests")
	HarvestSkips    = expvar.NewInt("harvest_skips")
	HarvestFailures = expvar.NewInt("harvest_failures")
)
