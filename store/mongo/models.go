package mongo

import (
	"time"

	"github.com/qrgate/qrgate/account"
	"github.com/qrgate/qrgate/artifact"
	"github.com/qrgate/qrgate/id"
	"github.com/qrgate/qrgate/identity"
	"github.com/qrgate/qrgate/promo"
	"github.com/qrgate/qrgate/session"
	"github.com/qrgate/qrgate/subscription"
	"github.com/qrgate/qrgate/types"
)

// ==================== Account models ====================

type accountModel struct {
	ID              string     `bson:"_id"`
	Email           string     `bson:"email"`
	Name            string     `bson:"name"`
	Picture         string     `bson:"picture,omitempty"`
	Tier            string     `bson:"tier"`
	PremiumExpiry   *time.Time `bson:"premium_expiry,omitempty"`
	GenerationCount int64      `bson:"generation_count"`
	CreatedAt       time.Time  `bson:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:              a.ID.String(),
		Email:           a.Email,
		Name:            a.Name,
		Picture:         a.Picture,
		Tier:            string(a.Tier),
		PremiumExpiry:   a.PremiumExpiry,
		GenerationCount: a.GenerationCount,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	accountID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, err
	}

	return &account.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              accountID,
		Email:           m.Email,
		Name:            m.Name,
		Picture:         m.Picture,
		Tier:            identity.Tier(m.Tier),
		PremiumExpiry:   m.PremiumExpiry,
		GenerationCount: m.GenerationCount,
	}, nil
}

// ==================== Session models ====================

type sessionModel struct {
	ID        string    `bson:"_id"`
	AccountID string    `bson:"account_id"`
	Token     string    `bson:"token"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toSessionModel(s *session.Session) *sessionModel {
	return &sessionModel{
		ID:        s.ID.String(),
		AccountID: s.AccountID.String(),
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func fromSessionModel(m *sessionModel) (*session.Session, error) {
	sessionID, err := id.ParseSessionID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}

	return &session.Session{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        sessionID,
		AccountID: accountID,
		Token:     m.Token,
		ExpiresAt: m.ExpiresAt,
	}, nil
}

// ==================== Artifact models ====================

type artifactModel struct {
	ID         string    `bson:"_id"`
	OwnerKey   string    `bson:"owner_key"`
	TargetURL  string    `bson:"url"`
	Width      int       `bson:"width"`
	Height     int       `bson:"height"`
	ImageRef   string    `bson:"image_ref"`
	Downloaded bool      `bson:"downloaded"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func toArtifactModel(a *artifact.Artifact) *artifactModel {
	return &artifactModel{
		ID:         a.ID.String(),
		OwnerKey:   a.OwnerKey,
		TargetURL:  a.TargetURL,
		Width:      a.Width,
		Height:     a.Height,
		ImageRef:   a.ImageRef,
		Downloaded: a.Downloaded,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func fromArtifactModel(m *artifactModel) (*artifact.Artifact, error) {
	artifactID, err := id.ParseArtifactID(m.ID)
	if err != nil {
		return nil, err
	}

	return &artifact.Artifact{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         artifactID,
		OwnerKey:   m.OwnerKey,
		TargetURL:  m.TargetURL,
		Width:      m.Width,
		Height:     m.Height,
		ImageRef:   m.ImageRef,
		Downloaded: m.Downloaded,
	}, nil
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	ID        string    `bson:"_id"`
	AccountID string    `bson:"account_id"`
	Plan      string    `bson:"plan"`
	Status    string    `bson:"status"`
	StartedAt time.Time `bson:"started_at"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:        s.ID.String(),
		AccountID: s.AccountID.String(),
		Plan:      s.Plan,
		Status:    string(s.Status),
		StartedAt: s.StartedAt,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}

	return &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        subID,
		AccountID: accountID,
		Plan:      m.Plan,
		Status:    subscription.Status(m.Status),
		StartedAt: m.StartedAt,
		ExpiresAt: m.ExpiresAt,
	}, nil
}

// ==================== Redemption models ====================

type redemptionModel struct {
	ID        string    `bson:"_id"`
	AccountID string    `bson:"account_id"`
	Code      string    `bson:"code"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toRedemptionModel(r *promo.Redemption) *redemptionModel {
	return &redemptionModel{
		ID:        r.ID.String(),
		AccountID: r.AccountID.String(),
		Code:      r.Code,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func fromRedemptionModel(m *redemptionModel) (*promo.Redemption, error) {
	redemptionID, err := id.ParseRedemptionID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}

	return &promo.Redemption{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        redemptionID,
		AccountID: accountID,
		Code:      m.Code,
	}, nil
}
