package autoplay

// Session status names as served by the API.
const (
	statusPlaying  = "PLAYING"
	statusFinished = "FINISHED"
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
	PercentageMultiplier    = 100
)
