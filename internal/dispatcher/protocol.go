package dispatcher

// Response codes, per the wire table: 100-series informational,
// 200-series success, 400-series "accepted but failed", 500-series
// rejected, 600-series unsolicited.
const (
	ActionInitiated  = 100
	CommandOkay      = 200
	OperationFailed  = 400
	CommandSyntaxErr = 500
	CommandParamErr  = 501
	InterfaceChange  = 600
	BandwidthControl = 601
)

// broadcastCookie prefixes unsolicited lines. The server also uses it
// on the 500 reply to a line whose cookie could not be parsed, and a
// client cookie of 0 is not rejected.
const broadcastCookie = "0"
