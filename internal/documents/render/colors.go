package render

// RGB is an 8-bit colour triple.
type RGB struct {
	R, G, B int
}

var statusColors = map[string]RGB{
	"draft":     {156, 163, 175},
	"sent":      {59, 130, 246},
	"paid":      {34, 197, 94},
	"overdue":   {239, 68, 68},
	"cancelled": {107, 114, 128},
	"pending":   {234, 179, 8},
	"approved":  {34, 197, 94},
	"rejected":  {239, 68, 68},
	"converted": {59, 130, 246},
	"accepted":  {34, 197, 94},
	"revised":   {107, 114, 128},
}

// StatusColor returns the badge colour for status. Unknown statuses use the draft grey.
func StatusColor(status string) RGB {
	if c, ok := statusColors[status]; ok {
		return c
	}
	return statusColors["draft"]
}
