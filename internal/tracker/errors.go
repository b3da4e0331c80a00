package tracker

import "errors"

var (
	errUnknownToolID = errors.New("tracker: unknown tool id")
	errReviewTimeout = errors.New("tracker: timed out waiting for review")
)
