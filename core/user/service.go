package user

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/cache"
	"github.com/hoopdesk/hoopdesk/core/gateway"
)

var (
	// errors
	ErrNotFound = errors.WithMessage(core.ErrNotFound, "user")
)

const (
	procAuthData = "get_user_auth_data_secure"
	procApprove  = "rpc_approve_user_secure"

	authCachePrefix = "auth:"
)

type (
	Repository interface {
		GetProfile(ctx context.Context, id string) (Profile, error)
		// FilterProfiles applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Profile.FullName or Profile.Email.
		FilterProfiles(ctx context.Context, filter QueryFilter) ([]Profile, error)
		UpdateProfile(ctx context.Context, id string, up UpdateProfile) (Profile, error)
	}

	// Provisioner writes accounts directly, bypassing the approval flow.
	Provisioner interface {
		SaveProfile(ctx context.Context, prof Profile) (Profile, error)
		SetRoles(ctx context.Context, userID string, roles []Role) error
	}

	Service struct {
		gw        gateway.Gateway
		repo      Repository
		authCache *cache.Cache[AuthData]
		mailSvc   core.EmailService
		logger    core.Logger
	}
)

// NewService builds the user Service. authCache holds AuthData for the role TTL.
func NewService(gw gateway.Gateway, repo Repository, authCache *cache.Cache[AuthData], mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{gw: gw, repo: repo, authCache: authCache, mailSvc: mailSvc, logger: logger}
}

// AuthData returns the approval status and role assignments of userID, cached.
func (svc *Service) AuthData(ctx context.Context, userID string) (AuthData, error) {
	return svc.authCache.GetOrLoad(authCachePrefix+userID, func() (AuthData, error) {
		var data AuthData
		err := svc.gw.Query(ctx, procAuthData, []gateway.Param{gateway.P("target_user_id", userID)}, &data)
		if err != nil {
			return AuthData{}, errors.Wrap(err, "fetching auth data")
		}
		if data.UserID == "" {
			data.UserID = userID
		}
		return data, nil
	})
}

// Authorize runs the gate for userID against required roles.
func (svc *Service) Authorize(ctx context.Context, userID string, required ...Role) (Access, AuthData, error) {
	auth, err := svc.AuthData(ctx, userID)
	if err != nil {
		return AccessDenied, AuthData{}, err
	}
	return Authorize(auth, required...), auth, nil
}

// InvalidateAuth drops the cached AuthData of userID.
func (svc *Service) InvalidateAuth(userID string) {
	svc.authCache.Invalidate(authCachePrefix + userID)
}

// Approve records an approval decision on a pending account. The acting admin is read from ctx.
func (svc *Service) Approve(ctx context.Context, targetID string, d Decision) (Profile, error) {
	if d.Decision != StatusApproved && d.Decision != StatusRejected {
		return Profile{}, core.NewValidationError(nil, core.FieldError{Field: "decision", Error: "decision must be either approved or rejected"})
	}

	var reason interface{}
	if d.Reason != "" {
		reason = d.Reason
	}
	err := svc.gw.Call(ctx, procApprove, []gateway.Param{
		gateway.P("target_user_id", targetID),
		gateway.P("approval_decision", string(d.Decision)),
		gateway.P("rejection_reason", reason),
	}, nil)
	if err != nil {
		return Profile{}, errors.Wrap(err, "approving user")
	}
	svc.InvalidateAuth(targetID)

	prof, err := svc.repo.GetProfile(ctx, targetID)
	if err != nil {
		return Profile{}, errors.Wrap(err, "fetching approved profile")
	}
	svc.sendDecisionMail(prof)
	return prof, nil
}

func (svc *Service) sendDecisionMail(prof Profile) {
	if prof.Email == "" || svc.mailSvc == nil {
		return
	}
	subject := "Your account has been approved"
	if prof.ApprovalStatus == StatusRejected {
		subject = "Your account request"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: prof.FullName, Address: prof.Email}},
		Subject:      subject,
		TemplateName: "account_decision",
		TemplateData: map[string]interface{}{
			"Name":   prof.FullName,
			"Status": string(prof.ApprovalStatus),
			"Reason": prof.RejectionReason.String,
		},
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	prof, err := svc.repo.GetProfile(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	auth, err := svc.AuthData(ctx, id)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("loading roles of %s: %v", id, err), err)
		return prof, nil
	}
	prof.Roles = auth.ActiveRoles()
	return prof, nil
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Profile, error) {
	return svc.repo.FilterProfiles(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, id string, up UpdateProfile) (Profile, error) {
	return svc.repo.UpdateProfile(ctx, id, up)
}
