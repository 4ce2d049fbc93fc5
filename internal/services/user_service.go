package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/parastoo-62/petitions/internal/config"
	"github.com/parastoo-62/petitions/internal/db"
	"github.com/parastoo-62/petitions/internal/emailclass"
	"github.com/parastoo-62/petitions/internal/geo"
	"github.com/parastoo-62/petitions/internal/models"
	"github.com/parastoo-62/petitions/internal/sixid"
)

// SignerProfile carries the petitioner-submitted fields used to create an
// identity on first encounter.
type SignerProfile struct {
	Email     string
	FirstName string
	LastName  string
	Zip       string
	ClientIP  string
}

// IUserService resolves durable identities keyed by normalized email.
type IUserService interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindOrCreate returns the identity for the profile's email, creating
	// it on first encounter. The bool reports whether a new identity was
	// created by this call.
	FindOrCreate(ctx context.Context, profile SignerProfile) (*models.User, bool, error)
}

type userService struct {
	db  *mongo.Database
	cfg *config.Config
	geo geo.Resolver // may be nil; enrichment is best-effort
}

// NewUserService creates a new UserService. The geo resolver may be nil.
func NewUserService(database *mongo.Database, cfg *config.Config, resolver geo.Resolver) IUserService {
	return &userService{db: database, cfg: cfg, geo: resolver}
}

// FindByEmail finds a non-deleted identity by normalized email.
// Returns nil and mongo.ErrNoDocuments if not found.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	filter := bson.M{"email": emailclass.Normalize(email), "deleted": false}

	err := s.db.Collection(db.UsersCollection).FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// FindOrCreate looks the identity up by email and creates it if absent.
// Creation tolerates the concurrent-worker race: a duplicate-key failure on
// the unique email index falls back to lookup.
func (s *userService) FindOrCreate(ctx context.Context, profile SignerProfile) (*models.User, bool, error) {
	email := emailclass.Normalize(profile.Email)
	if email == "" {
		return nil, false, fmt.Errorf("cannot resolve identity for empty email")
	}

	user, err := s.FindByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	created, err := s.create(ctx, email, profile)
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			// Another worker created the identity between our lookup and
			// insert. Theirs wins.
			existing, findErr := s.FindByEmail(ctx, email)
			if findErr != nil {
				return nil, false, fmt.Errorf("duplicate identity for %s but lookup failed: %w", email, findErr)
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return created, true, nil
}

func (s *userService) create(ctx context.Context, email string, profile SignerProfile) (*models.User, error) {
	now := time.Now().UTC()
	var newUser *models.User

	operation := func() error {
		newUser = &models.User{
			Base:      models.NewBase(), // ID regenerated on each attempt
			Email:     email,
			Handle:    generateHandle(email),
			FirstName: strings.TrimSpace(profile.FirstName),
			LastName:  strings.TrimSpace(profile.LastName),
			Zip:       strings.TrimSpace(profile.Zip),
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if s.cfg.ProfileEnrichment {
			s.enrich(newUser, profile)
		}
		_, insertErr := s.db.Collection(db.UsersCollection).InsertOne(ctx, newUser)
		return insertErr
	}

	// Retries only fire for _id collisions; a collision on the unique email
	// index is a real duplicate and surfaces to the caller for the lookup
	// fallback.
	err := db.WithRetries(operation, db.DefaultMaxRetries, func(err error) bool {
		return db.IsMongoDuplicateKeyError(err) && db.DuplicateKeyIndex(err) != db.IndexUniqueEmail
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"user": newUser.ID.String(), "handle": newUser.Handle}).Debug("Created identity")
	return newUser, nil
}

// enrich fills city/state/country from the signer's client IP. Lookup
// failure degrades to the submitted raw fields.
func (s *userService) enrich(user *models.User, profile SignerProfile) {
	if s.geo == nil || profile.ClientIP == "" {
		return
	}
	loc, err := s.geo.Locate(profile.ClientIP)
	if err != nil {
		log.WithError(err).WithField("ip", profile.ClientIP).Debug("Geo enrichment skipped")
		return
	}
	user.City = loc.City
	user.State = loc.State
	user.Country = loc.Country
}

// generateHandle derives a display handle from the email local part plus a
// random suffix. The suffix keeps handles collision-resistant when several
// workers create identities concurrently; handles are not unique-indexed,
// the email is.
func generateHandle(email string) string {
	local := email
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}
	var slug strings.Builder
	for _, r := range local {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			slug.WriteRune(r)
		}
		if slug.Len() >= 20 {
			break
		}
	}
	if slug.Len() == 0 {
		slug.WriteString("signer")
	}
	return slug.String() + "-" + strings.ToLower(sixid.New().String())
}
