// Package models defines the allocation engine's persisted entities and
// their closed status enumerations.
//
// Status values are stored as SMALLINT codes. The numeric values below are a
// stable contract for external consumers: never renumber an existing code,
// only append new ones and bump StatusCodesVersion.
package models

import "fmt"

// StatusCodesVersion identifies the revision of the code tables below. It is
// mirrored by the status_codes reference table.
const StatusCodesVersion = 1

type ListingStatus int16

const (
	ListingActive   ListingStatus = 1
	ListingAssigned ListingStatus = 2
	ListingClosed   ListingStatus = 3
)

var listingStatusNames = map[ListingStatus]string{
	ListingActive:   "active",
	ListingAssigned: "assigned",
	ListingClosed:   "closed",
}

func (s ListingStatus) String() string { return statusName(listingStatusNames, s) }

// ParseListingStatus validates a stored code.
func ParseListingStatus(code int16) (ListingStatus, error) {
	return parseCode(listingStatusNames, ListingStatus(code), "listing")
}

type ApplicantStatus int16

const (
	ApplicantActive             ApplicantStatus = 1
	ApplicantAssigned           ApplicantStatus = 2
	ApplicantDenied             ApplicantStatus = 3
	ApplicantWithdrawnByUser    ApplicantStatus = 4
	ApplicantWithdrawnByManager ApplicantStatus = 5
	ApplicantOffered            ApplicantStatus = 6
	ApplicantOfferDeclined      ApplicantStatus = 7
	ApplicantOfferExpired       ApplicantStatus = 8
)

var applicantStatusNames = map[ApplicantStatus]string{
	ApplicantActive:             "active",
	ApplicantAssigned:           "assigned",
	ApplicantDenied:             "denied",
	ApplicantWithdrawnByUser:    "withdrawn_by_user",
	ApplicantWithdrawnByManager: "withdrawn_by_manager",
	ApplicantOffered:            "offered",
	ApplicantOfferDeclined:      "offer_declined",
	ApplicantOfferExpired:       "offer_expired",
}

func (s ApplicantStatus) String() string { return statusName(applicantStatusNames, s) }

func ParseApplicantStatus(code int16) (ApplicantStatus, error) {
	return parseCode(applicantStatusNames, ApplicantStatus(code), "applicant")
}

type OfferStatus int16

const (
	OfferPending  OfferStatus = 1
	OfferAccepted OfferStatus = 2
	OfferDeclined OfferStatus = 3
	OfferExpired  OfferStatus = 4
)

var offerStatusNames = map[OfferStatus]string{
	OfferPending:  "pending",
	OfferAccepted: "accepted",
	OfferDeclined: "declined",
	OfferExpired:  "expired",
}

func (s OfferStatus) String() string { return statusName(offerStatusNames, s) }

func ParseOfferStatus(code int16) (OfferStatus, error) {
	return parseCode(offerStatusNames, OfferStatus(code), "offer")
}

// Terminal reports whether no further transition is allowed.
func (s OfferStatus) Terminal() bool {
	return s == OfferAccepted || s == OfferDeclined || s == OfferExpired
}

type ReviewStatus int16

const (
	ReviewPending  ReviewStatus = 1
	ReviewApproved ReviewStatus = 2
	ReviewRejected ReviewStatus = 3
)

var reviewStatusNames = map[ReviewStatus]string{
	ReviewPending:  "pending",
	ReviewApproved: "approved",
	ReviewRejected: "rejected",
}

func (s ReviewStatus) String() string { return statusName(reviewStatusNames, s) }

func ParseReviewStatus(code int16) (ReviewStatus, error) {
	return parseCode(reviewStatusNames, ReviewStatus(code), "review")
}

// StatusCode is one row of the published code table.
type StatusCode struct {
	Domain string
	Code   int16
	Name   string
}

// StatusCodes returns the full code table for the current version, in
// domain then code order. The initial migration seeds the same rows.
func StatusCodes() []StatusCode {
	var out []StatusCode
	out = appendCodes(out, "listing", listingStatusNames, []ListingStatus{ListingActive, ListingAssigned, ListingClosed})
	out = appendCodes(out, "applicant", applicantStatusNames, []ApplicantStatus{
		ApplicantActive, ApplicantAssigned, ApplicantDenied, ApplicantWithdrawnByUser,
		ApplicantWithdrawnByManager, ApplicantOffered, ApplicantOfferDeclined, ApplicantOfferExpired,
	})
	out = appendCodes(out, "offer", offerStatusNames, []OfferStatus{OfferPending, OfferAccepted, OfferDeclined, OfferExpired})
	out = appendCodes(out, "review", reviewStatusNames, []ReviewStatus{ReviewPending, ReviewApproved, ReviewRejected})
	return out
}

type statusCode interface {
	~int16
}

func statusName[S statusCode](names map[S]string, s S) string {
	if n, ok := names[s]; ok {
		return n
	}
	return fmt.Sprintf("unknown(%d)", int16(s))
}

func parseCode[S statusCode](names map[S]string, s S, domain string) (S, error) {
	if _, ok := names[s]; !ok {
		return 0, fmt.Errorf("unknown %s status code %d", domain, int16(s))
	}
	return s, nil
}

func appendCodes[S statusCode](out []StatusCode, domain string, names map[S]string, order []S) []StatusCode {
	for _, s := range order {
		out = append(out, StatusCode{Domain: domain, Code: int16(s), Name: names[s]})
	}
	return out
}
