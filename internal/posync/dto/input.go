package dto

type CancellationInput struct {
	Reason string `json:"reason"`
}
