// Package proof validates a vendor's delivery evidence and checks that the
// submitting actor is the vendor assigned to the expenditure.
package proof

import (
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/entity"
)

const maxDescriptionLength = 2000

// Submission is the vendor-supplied part of a proof. Timestamps are never
// taken from the client.
type Submission struct {
	Images      []string
	Location    entity.Location
	Description string
}

// Validate checks the submission shape. It does not look at the expenditure.
func Validate(s Submission) error {
	v := common.NewValidator().
		Field("images", s.Images, common.Required).
		Field("location.latitude", s.Location.Latitude, common.Between(-90, 90)).
		Field("location.longitude", s.Location.Longitude, common.Between(-180, 180)).
		Field("description", s.Description, common.MaxLength(maxDescriptionLength))

	if len(s.Images) > constants.MaxEvidenceImages {
		v.Field("images", s.Images, func(field string, value interface{}) *common.ValidationError {
			return &common.ValidationError{Field: field, Message: fmt.Sprintf("must contain at most %d references", constants.MaxEvidenceImages)}
		})
	}
	for i, ref := range s.Images {
		if !constants.IsEvidenceRef(ref) {
			v.Field(fmt.Sprintf("images[%d]", i), ref, func(field string, value interface{}) *common.ValidationError {
				return &common.ValidationError{Field: field, Value: value, Message: "is not a supported image reference"}
			})
		}
	}
	return v.Err()
}

// Authorize fails with Unauthorized unless actor is the assigned vendor.
func Authorize(exp *entity.Expenditure, actor entity.Actor) error {
	if !exp.HasVendor() {
		return common.NewUnauthorizedError("no vendor is assigned to this expenditure").
			WithExpenditure(exp.ID.String(), exp.Status.String())
	}
	if !exp.VendorIs(actor.ID) {
		return common.NewUnauthorizedError(fmt.Sprintf("actor %s is not the assigned vendor", actor.ID)).
			WithExpenditure(exp.ID.String(), exp.Status.String())
	}
	return nil
}

// Build returns the proof record stamped with the server time. Image
// references keep their order; blanks and exact duplicates are dropped.
func Build(s Submission, vendorID string, now time.Time) *entity.VendorProof {
	seen := make(map[string]struct{}, len(s.Images))
	images := make([]string, 0, len(s.Images))
	for _, ref := range s.Images {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		images = append(images, ref)
	}
	return &entity.VendorProof{
		VendorID:    vendorID,
		Images:      images,
		Location:    s.Location,
		Description: strings.TrimSpace(s.Description),
		SubmittedAt: now,
	}
}
