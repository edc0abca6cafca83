// Package story turns a triaged set of kept photos into a travel video by
// way of a third-party generation service.
//
// Every vendor implements the same two-step contract: Submit a request and
// get back a Handle, then PollStatus the handle until it reports done. Wait
// drives the polling loop under a RetryPolicy; Client adds submit retries,
// background waits with cancellation, and write-through to a store.Store.
package story

import (
	"context"
	"encoding/base64"
	"fmt"
)

// State is a vendor-neutral task state.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Photo is one input image.
type Photo struct {
	Name     string
	MIMEType string
	Data     []byte
	// URL, when set, is a publicly fetchable copy of the photo (a presigned
	// S3 link, for example). Vendors that accept URLs prefer it over Data.
	URL string
}

// DataURI returns the photo as a base64 data URI.
func (p Photo) DataURI() string {
	mt := p.MIMEType
	if mt == "" {
		mt = "image/jpeg"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Base64 returns the raw base64 encoding of the photo bytes.
func (p Photo) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// Request is everything a vendor needs to start one generation.
type Request struct {
	Photos  []Photo
	Prompt  string
	Caption string
	Config  VideoConfig
}

// reference returns the image a single-image vendor animates: the first kept photo.
func (r *Request) reference() (Photo, error) {
	if len(r.Photos) == 0 {
		return Photo{}, fmt.Errorf("no photos in request")
	}
	return r.Photos[0], nil
}

// Handle identifies a submitted task at its vendor.
type Handle struct {
	Service string `json:"service"`
	ID      string `json:"id"`
}

// Status is one poll result. Progress is 0..100. ResultRef locates the
// finished video (a URL, or a vendor ID for vendors that serve downloads
// themselves). Message carries the vendor's failure reason.
type Status struct {
	Done      bool   `json:"done"`
	Progress  int    `json:"progress"`
	ResultRef string `json:"resultRef,omitempty"`
	State     State  `json:"state"`
	Message   string `json:"message,omitempty"`
}

// Generator is a video generation vendor.
type Generator interface {
	Name() string
	Submit(ctx context.Context, req *Request) (Handle, error)
	PollStatus(ctx context.Context, h Handle) (Status, error)
}
