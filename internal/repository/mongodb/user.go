package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sakif/aurashift/internal/apperror"
	"github.com/sakif/aurashift/internal/model"
	"github.com/sakif/aurashift/internal/repository"
)

var _ repository.UserRepository = (*UserStore)(nil)

type UserStore struct {
	collection *mongo.Collection
}

type profileDoc struct {
	YearsSmoked      float64  `bson:"yearsSmoked"`
	CigarettesPerDay int      `bson:"cigarettesPerDay"`
	CostPerCigarette float64  `bson:"costPerCigarette"`
	Motivations      []string `bson:"motivations"`
}

type userDoc struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	DisplayName         string             `bson:"displayName"`
	Email               string             `bson:"email,omitempty"`
	PasswordHash        string             `bson:"password,omitempty"`
	GitHubID            int64              `bson:"githubId,omitempty"`
	AvatarURL           string             `bson:"avatarUrl,omitempty"`
	SmokingHistory      *profileDoc        `bson:"smokingHistory,omitempty"`
	OnboardingCompleted bool               `bson:"onboardingCompleted"`
	AuraScore           int                `bson:"auraScore"`
	CigarettesAvoided   int                `bson:"cigarettesAvoided"`
	TotalMoneySaved     float64            `bson:"totalMoneySaved"`
	StreakStartTime     *time.Time         `bson:"streakStartTime,omitempty"`
	LastSmoked          *time.Time         `bson:"lastSmoked,omitempty"`
	CreatedAt           time.Time          `bson:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt"`
}

func toProfileDoc(p *model.SmokingProfile) *profileDoc {
	if p == nil {
		return nil
	}
	return &profileDoc{
		YearsSmoked:      p.YearsSmoked,
		CigarettesPerDay: p.CigarettesPerDay,
		CostPerCigarette: p.CostPerCigarette,
		Motivations:      p.Motivations,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (d userDoc) toModel() *model.User {
	u := &model.User{
		ID:                  d.ID.Hex(),
		DisplayName:         d.DisplayName,
		Email:               d.Email,
		PasswordHash:        d.PasswordHash,
		GitHubID:            d.GitHubID,
		AvatarURL:           d.AvatarURL,
		OnboardingCompleted: d.OnboardingCompleted,
		AuraScore:           d.AuraScore,
		CigarettesAvoided:   d.CigarettesAvoided,
		TotalMoneySaved:     d.TotalMoneySaved,
		StreakStartTime:     utcPtr(d.StreakStartTime),
		LastSmoked:          utcPtr(d.LastSmoked),
		CreatedAt:           d.CreatedAt.UTC(),
		UpdatedAt:           d.UpdatedAt.UTC(),
	}
	if p := d.SmokingHistory; p != nil {
		u.SmokingHistory = &model.SmokingProfile{
			YearsSmoked:      p.YearsSmoked,
			CigarettesPerDay: p.CigarettesPerDay,
			CostPerCigarette: p.CostPerCigarette,
			Motivations:      p.Motivations,
		}
	}
	return u
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	user.CreatedAt = now
	user.UpdatedAt = now

	doc := userDoc{
		DisplayName:         user.DisplayName,
		Email:               user.Email,
		PasswordHash:        user.PasswordHash,
		GitHubID:            user.GitHubID,
		AvatarURL:           user.AvatarURL,
		SmokingHistory:      toProfileDoc(user.SmokingHistory),
		OnboardingCompleted: user.OnboardingCompleted,
		AuraScore:           user.AuraScore,
		CigarettesAvoided:   user.CigarettesAvoided,
		TotalMoneySaved:     user.TotalMoneySaved,
		StreakStartTime:     user.StreakStartTime,
		LastSmoked:          user.LastSmoked,
		CreatedAt:           user.CreatedAt,
		UpdatedAt:           user.UpdatedAt,
	}

	result, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("user with this email already exists")
		}
		return fmt.Errorf("mongodb: inserting user: %w", err)
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("mongodb: unexpected inserted id type %T", result.InsertedID)
	}
	user.ID = oid.Hex()
	return nil
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	oid, ok := parseID(id)
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return s.findOne(ctx, bson.M{"_id": oid}, id)
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findOne(ctx, bson.M{"email": email}, email)
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M, key string) (*model.User, error) {
	var doc userDoc
	if err := s.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("mongodb: finding user %s: %w", key, err)
	}
	return doc.toModel(), nil
}

func (s *UserStore) Upsert(ctx context.Context, user *model.User) error {
	existing, err := s.findOne(ctx, bson.M{"githubId": user.GitHubID}, fmt.Sprint(user.GitHubID))
	if errors.Is(err, apperror.ErrNotFound) {
		return s.Create(ctx, user)
	}
	if err != nil {
		return err
	}

	oid, _ := parseID(existing.ID)
	_, err = s.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"displayName": user.DisplayName,
		"avatarUrl":   user.AvatarURL,
		"updatedAt":   time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("mongodb: updating user %s: %w", existing.ID, err)
	}

	stored, err := s.GetUserByID(ctx, existing.ID)
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

func (s *UserStore) Update(ctx context.Context, id string, patch model.UserPatch) error {
	oid, ok := parseID(id)
	if !ok {
		return apperror.NotFound("user", id)
	}

	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": patchSet(patch)})
	if err != nil {
		return fmt.Errorf("mongodb: updating user %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// patchSet builds the $set document for a partial update. updatedAt is
// always included.
func patchSet(p model.UserPatch) bson.M {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if p.AuraScore != nil {
		set["auraScore"] = *p.AuraScore
	}
	if p.CigarettesAvoided != nil {
		set["cigarettesAvoided"] = *p.CigarettesAvoided
	}
	if p.TotalMoneySaved != nil {
		set["totalMoneySaved"] = *p.TotalMoneySaved
	}
	if p.SmokingHistory != nil {
		set["smokingHistory"] = toProfileDoc(p.SmokingHistory)
	}
	if p.OnboardingCompleted != nil {
		set["onboardingCompleted"] = *p.OnboardingCompleted
	}
	if p.StreakStartTime != nil {
		set["streakStartTime"] = p.StreakStartTime.UTC()
	}
	if p.LastSmoked != nil {
		set["lastSmoked"] = p.LastSmoked.UTC()
	}
	return set
}
