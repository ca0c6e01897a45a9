package enums

import "fmt"

// DisputeStatus tracks a dispute. Only one open dispute may exist per order.
type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
)

// IsValid reports whether the value is a known DisputeStatus.
func (d DisputeStatus) IsValid() bool {
	return d == DisputeStatusOpen || d == DisputeStatusResolved
}

// DisputeResolution names the two terminal dispute outcomes.
type DisputeResolution string

const (
	DisputeResolutionRefundToBuyer   DisputeResolution = "refund_to_buyer"
	DisputeResolutionReleaseToSeller DisputeResolution = "release_to_seller"
)

var validDisputeResolutions = []DisputeResolution{
	DisputeResolutionRefundToBuyer,
	DisputeResolutionReleaseToSeller,
}

// IsValid reports whether the value is a known DisputeResolution.
func (d DisputeResolution) IsValid() bool {
	for _, candidate := range validDisputeResolutions {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisputeResolution converts raw input into a DisputeResolution.
func ParseDisputeResolution(value string) (DisputeResolution, error) {
	for _, candidate := range validDisputeResolutions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute resolution %q", value)
}
