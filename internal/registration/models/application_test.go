package models

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "vivaha/pkg/domain"
	dErrors "vivaha/pkg/domain-errors"
)

type ApplicationSuite struct {
	suite.Suite
	now time.Time
	app *Application
}

func TestApplicationSuite(t *testing.T) {
	suite.Run(t, new(ApplicationSuite))
}

func (s *ApplicationSuite) SetupTest() {
	s.now = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	s.app = NewApplication(id.ApplicationID(uuid.New()), id.UserID(uuid.New()), s.now)
}

func (s *ApplicationSuite) rejectedDocument() *Document {
	doc := NewDocument(id.DocumentID(uuid.New()), s.app.ID, DocumentTypeAadhaar, DocumentOwnerUser, "mem://a", s.now)
	doc.ApplyRejection("blurry")
	return doc
}

func (s *ApplicationSuite) TestCanVerify() {
	s.Run("no documents passes the gate", func() {
		s.NoError(s.app.CanVerify(nil))
	})

	s.Run("rejected document blocks with its label", func() {
		err := s.app.CanVerify([]*Document{s.rejectedDocument()})
		var blocked *BlockedByRejectedDocumentsError
		s.Require().True(errors.As(err, &blocked))
		s.Equal([]string{"Groom's Aadhaar Card"}, blocked.Labels)
	})

	s.Run("reuploaded document passes the gate", func() {
		doc := s.rejectedDocument()
		doc.ApplyReupload("mem://b", s.now.Add(time.Hour))
		s.NoError(s.app.CanVerify([]*Document{doc}))
	})

	s.Run("pending documents do not block", func() {
		doc := NewDocument(id.DocumentID(uuid.New()), s.app.ID, DocumentTypePhoto, DocumentOwnerJoint, "mem://c", s.now)
		s.NoError(s.app.CanVerify([]*Document{doc}))
	})
}

func (s *ApplicationSuite) TestApplyVerification() {
	registrar := id.UserID(uuid.New())
	regDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	s.app.ApplyVerification(s.now, registrar, "MH-2025-00042", regDate)

	s.True(s.app.Verified)
	s.Require().NotNil(s.app.VerifiedAt)
	s.Equal(s.now, *s.app.VerifiedAt)
	s.Require().NotNil(s.app.VerifiedBy)
	s.Equal(registrar, *s.app.VerifiedBy)
	s.Equal("MH-2025-00042", s.app.CertificateNumber)
	s.Require().NotNil(s.app.RegistrationDate)
	s.Equal(regDate, *s.app.RegistrationDate)
}

func (s *ApplicationSuite) TestApplyUnverification() {
	registrar := id.UserID(uuid.New())
	s.app.ApplyVerification(s.now, registrar, "MH-2025-00042", s.now)

	later := s.now.Add(time.Hour)
	s.app.ApplyUnverification(later)

	s.False(s.app.Verified)
	s.Nil(s.app.VerifiedAt)
	s.Nil(s.app.VerifiedBy)
	s.Equal(later, s.app.UpdatedAt)
}

func (s *ApplicationSuite) TestApplyUpdate() {
	s.Run("reports changed field names only", func() {
		status := ApplicationStatusUnderReview
		groom := PersonDetails{FullName: "Arjun Sharma"}
		changed := s.app.ApplyUpdate(ApplicationUpdate{Status: &status, Groom: &groom}, s.now.Add(time.Minute))
		s.ElementsMatch([]string{"status", "groom"}, changed)
		s.Equal(ApplicationStatusUnderReview, s.app.Status)
		s.Equal("Arjun Sharma", s.app.Groom.FullName)
	})

	s.Run("no-op update changes nothing", func() {
		before := s.app.UpdatedAt
		changed := s.app.ApplyUpdate(ApplicationUpdate{}, s.now.Add(time.Hour))
		s.Empty(changed)
		s.Equal(before, s.app.UpdatedAt)
	})

	s.Run("same status is not reported as changed", func() {
		status := s.app.Status
		changed := s.app.ApplyUpdate(ApplicationUpdate{Status: &status}, s.now.Add(time.Hour))
		s.Empty(changed)
	})
}

func (s *ApplicationSuite) TestUpdateValidate() {
	s.Run("unknown status rejected", func() {
		status := ApplicationStatus("archived")
		err := (&ApplicationUpdate{Status: &status}).Validate()
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("progress outside 0-100 rejected", func() {
		progress := 140
		err := (&ApplicationUpdate{Progress: &progress}).Validate()
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("empty groom name rejected", func() {
		err := (&ApplicationUpdate{Groom: &PersonDetails{FullName: "  "}}).Validate()
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("valid update passes", func() {
		status := ApplicationStatusSubmitted
		s.NoError((&ApplicationUpdate{Status: &status}).Validate())
	})
}

func (s *ApplicationSuite) TestRecomputeProgress() {
	approved := NewDocument(id.DocumentID(uuid.New()), s.app.ID, DocumentTypeAadhaar, DocumentOwnerUser, "mem://a", s.now)
	approved.ApplyApproval()
	pending := NewDocument(id.DocumentID(uuid.New()), s.app.ID, DocumentTypePhoto, DocumentOwnerJoint, "mem://b", s.now)

	s.app.RecomputeProgress([]*Document{approved, pending})
	s.Equal(50, s.app.Progress)

	s.app.RecomputeProgress(nil)
	s.Equal(0, s.app.Progress)
}
