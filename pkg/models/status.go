package models

// Routes chosen by the intent router.
const (
	RouteGenerate  Route = "generate"
	RouteScheduler Route = "scheduler"
	RouteKB        Route = "kb"
	RouteEnd       Route = "end"
)

// Supported channels. Twitter is normalized to X everywhere.
const (
	ChannelInstagram Channel = "Instagram"
	ChannelLinkedIn  Channel = "LinkedIn"
	ChannelFacebook  Channel = "Facebook"
	ChannelX         Channel = "X"
)

// DefaultChannel is used when a draft reaches the approval gate without a channel.
const DefaultChannel = ChannelLinkedIn

// Time layouts of the persisted files.
const (
	PostTimeLayout = "2006-01-02T15:04:05"
	DateLayout     = "2006-01-02"
)

// Default limits.
const (
	MaxHistoryEntries          = 50
	HistoryShowEntries         = 10
	HistoryBotTruncate         = 200
	DefaultMaxRequestBodyBytes = 1 << 20 // 1 MiB
	DefaultSSEChannelBuffer    = 256
)

// Channels lists every supported channel in display order.
func Channels() []Channel {
	return []Channel{ChannelInstagram, ChannelLinkedIn, ChannelFacebook, ChannelX}
}
