// Package demo seeds a recognisable set of participants, organizers, and
// studies so a fresh deployment is explorable without manual signup. It
// emulates both sides: the client-side key derivation and signing that the
// browser normally does, and the server-side registration it triggers.
package demo

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/prepams/prepams/internal/engine"
	"github.com/prepams/prepams/internal/identity"
	"github.com/prepams/prepams/internal/study"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// StudySeed describes one demo study before signing.
type StudySeed struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Abstract     string   `json:"abstract"`
	Description  string   `json:"description"`
	Duration     string   `json:"duration"`
	Reward       int      `json:"reward"`
	WebBased     bool     `json:"webBased"`
	StudyURL     string   `json:"studyUrl,omitempty"`
	Qualifier    []string `json:"qualifier"`
	Disqualifier []string `json:"disqualifier"`
	Constraints  []any    `json:"constraints"`
}

// Identity is one demo identity, including the client-side secrets a demo
// user needs to sign in from the browser.
type Identity struct {
	ID         string         `json:"id"`
	Role       identity.Role  `json:"role"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Seed       string         `json:"seed"`
	Key        map[string]any `json:"key"`
	Studies    []StudySeed    `json:"studies,omitempty"`
	State      string         `json:"state,omitempty"`
}

// Identities returns the demo identity set. The seeds and wrapping keys are
// fixed so repeated boots reconstruct the same accounts.
func Identities(surveyURL string) []Identity {
	return []Identity{{
		ID:   "participant1@example.org",
		Role: identity.RoleParticipant,
		Attributes: map[string]any{
			"year of birth": 1995,
			"handedness":    "right",
		},
		Seed: "9a5100934e010018886a9ef74d7f14a0221fb540f313948d650bcf4cb56052b9",
		Key:  aesKey("hXXqAvY9t5BUODlo650rlQs3vnd-IcO_ZIIGicIeaTo"),
	}, {
		ID:   "participant2@example.org",
		Role: identity.RoleParticipant,
		Attributes: map[string]any{
			"year of birth": 1887,
			"handedness":    "right",
		},
		Seed: "fbd4ae224d9024fc6b26ba66522fa54e1cdbe5414dd2c93191f9737cfeeadd30",
		Key:  aesKey("tohso7DBq7RSFw8NsQJwOYxd5Qvup18Ov4mCxLwUXXo"),
	}, {
		ID:   "participant3@example.org",
		Role: identity.RoleParticipant,
		Attributes: map[string]any{
			"year of birth": 2001,
			"handedness":    "left",
		},
		Seed: "03b900a7ee37f605f6f67d1d22306657b5a42aecef2b2d306dd2a1148b3ca79d",
		Key:  aesKey("mgqY_uDT63c-0CiGnT0LIdw8KjtK5Qx4_bTBgILQkTk"),
	}, {
		ID:   "organizer1@example.org",
		Role: identity.RoleOrganizer,
		Seed: "c9cda9663257b43888cf0ec5ea4827dd161ae48a6912612f755670bb777023ad",
		Key:  aesKey("g3wXrjcyaG0lhz1qey1r0t5MR1LJZLpZ-Be1aaVsnHg"),
		Studies: []StudySeed{{
			ID:          "MZQOjuGaFLfCMzVTuu2xYabC03kilWsRxPCPz9Rl7Cg",
			Name:        "Chatbot-based Training for Stress Reduction and Health Benefits",
			Abstract:    "The purpose of this study is to investigate the extent to which this chat-bot based training can reduce stress and improve health at the same time.",
			Description: "-",
			Duration:    "3 weeks",
			Reward:      45,
			Constraints: []any{[]any{0, "number", []any{1990, 2000}}},
		}, {
			ID:           "CqDYCcS9vnZSKGDNIkEql1bfOBluvUvchrdgQ6Ijv0c",
			Name:         "COVID-19, Personality and Social Media Usage",
			Abstract:     "Earn 5 easy credits by completing our questionnaire on social media use during the COVID-19 pandemic and personality traits.",
			Description:  "-",
			Duration:     "30 minutes",
			Reward:       5,
			Disqualifier: []string{"MZQOjuGaFLfCMzVTuu2xYabC03kilWsRxPCPz9Rl7Cg"},
		}, {
			ID:          "Xp5UmTZd-1hyhvJ7Ct9hv1amLyhaJPBi8mdmvcZwGi8",
			Name:        "COVID-19, Personality and Social Media Usage - Follow-Up",
			Abstract:    "Follow-up questionnaire on social media use during the continuing COVID-19 pandemic.",
			Description: "-",
			Duration:    "25 minutes",
			Reward:      5,
			Qualifier:   []string{"CqDYCcS9vnZSKGDNIkEql1bfOBluvUvchrdgQ6Ijv0c"},
		}, {
			ID:          "jzL5j7iQXZjn29s1iygahCd_fHI_gBSJWH7oFiH3Q1s",
			Name:        "Personality Traits Example Survey",
			Abstract:    "A web-based survey demo.",
			Description: "-",
			Duration:    "5 minutes",
			Reward:      10,
			WebBased:    true,
			StudyURL:    surveyURL,
		}},
	}, {
		ID:   "organizer2@example.org",
		Role: identity.RoleOrganizer,
		Seed: "bacf09abb522825aa497f173dfa300e29fc88e24fb9ac17aa1b6a1648f8856cc",
		Key:  aesKey("O6oSKK-2ee79RCrxKu-twzxAI5lnLc8OZLIOsg9Cf9I"),
	}}
}

func aesKey(k string) map[string]any {
	return map[string]any{
		"alg":     "A256GCM",
		"ext":     true,
		"k":       k,
		"key_ops": []string{"encrypt", "decrypt"},
		"kty":     "oct",
	}
}

// participantState is the serialized client state of a demo participant.
type participantState struct {
	ID        string `json:"id"`
	Seed      string `json:"seed"`
	Request   []byte `json:"request"`
	Signature []byte `json:"signature"`
}

// organizerState is the serialized client state of a demo organizer.
type organizerState struct {
	ID        string `json:"id"`
	Seed      string `json:"seed"`
	PublicKey []byte `json:"publicKey"`
}

// Deps are the collaborators Populate writes through.
type Deps struct {
	Identities identity.Store
	Studies    study.Store
	Engine     engine.Engine
	Logger     *zap.Logger
}

// Populate creates any demo identities and studies that do not exist yet and
// fills in each identity's client state. Safe to run on every boot: existing
// rows are left alone, and for already-registered participants the state is
// recovered by replaying the issued-credential log.
func Populate(ctx context.Context, surveyURL string, d Deps) ([]Identity, error) {
	identities := Identities(surveyURL)

	for i := range identities {
		ident := &identities[i]
		seed, err := hex.DecodeString(ident.Seed)
		if err != nil {
			return nil, fmt.Errorf("demo identity %s: bad seed: %w", ident.ID, err)
		}

		_, lookupErr := d.Identities.Lookup(ctx, ident.ID)
		exists := lookupErr == nil

		switch ident.Role {
		case identity.RoleParticipant:
			if err := populateParticipant(ctx, ident, seed, exists, d); err != nil {
				return nil, err
			}
		case identity.RoleOrganizer:
			if err := populateOrganizer(ctx, ident, seed, exists, d); err != nil {
				return nil, err
			}
		}
	}

	d.Logger.Info("demo data ready", zap.Int("identities", len(identities)))
	return identities, nil
}

func populateParticipant(ctx context.Context, ident *Identity, seed []byte, exists bool, d Deps) error {
	request := credentialRequest(ident.ID, seed)

	var signature []byte
	if exists {
		// Recover the issued signature the way a client would: replay the
		// issued log until one matches the re-derived request.
		issued, err := d.Identities.ListIssuedCredentials(ctx)
		if err != nil {
			return fmt.Errorf("demo recovery for %s: %w", ident.ID, err)
		}
		for _, sig := range issued {
			if engine.MatchCredential(sig, request) {
				signature = sig
				break
			}
		}
		if signature == nil {
			d.Logger.Warn("demo participant registered but no credential matches", zap.String("id", ident.ID))
			return nil
		}
	} else {
		sig, err := d.Engine.IssueCredential(request)
		if err != nil {
			return fmt.Errorf("demo credential for %s: %w", ident.ID, err)
		}
		if err := d.Identities.Register(ctx, identity.NewParticipant(ident.ID)); err != nil {
			return err
		}
		if err := d.Identities.RecordIssuedCredential(ctx, sig); err != nil {
			return err
		}
		signature = sig
	}

	state, err := json.Marshal(participantState{
		ID:        ident.ID,
		Seed:      ident.Seed,
		Request:   request,
		Signature: signature,
	})
	if err != nil {
		return fmt.Errorf("serialize demo state for %s: %w", ident.ID, err)
	}
	ident.State = hex.EncodeToString(state)
	return nil
}

func populateOrganizer(ctx context.Context, ident *Identity, seed []byte, exists bool, d Deps) error {
	key := ed25519.NewKeyFromSeed(seed)
	publicKey := key.Public().(ed25519.PublicKey)

	if !exists {
		if err := d.Identities.Register(ctx, identity.NewOrganizer(ident.ID, publicKey)); err != nil {
			return err
		}
	}

	for _, s := range ident.Studies {
		if _, err := d.Studies.Get(ctx, s.ID); err == nil {
			continue
		}
		signed, err := engine.SignResource(key, ident.ID, resourceFromSeed(s))
		if err != nil {
			return fmt.Errorf("sign demo study %s: %w", s.ID, err)
		}
		var studyURL *string
		if s.StudyURL != "" {
			url := s.StudyURL
			studyURL = &url
		}
		if err := d.Studies.Create(ctx, &study.Study{
			ID:           s.ID,
			Name:         s.Name,
			Owner:        ident.ID,
			Abstract:     s.Abstract,
			Description:  s.Description,
			Duration:     s.Duration,
			Reward:       s.Reward,
			Qualifier:    signed.Resource.Qualifier,
			Disqualifier: signed.Resource.Disqualifier,
			Constraints:  signed.Resource.Constraints,
			WebBased:     s.WebBased,
			StudyURL:     studyURL,
			Signature:    signed.Signature,
		}); err != nil {
			return err
		}
	}

	state, err := json.Marshal(organizerState{
		ID:        ident.ID,
		Seed:      ident.Seed,
		PublicKey: publicKey,
	})
	if err != nil {
		return fmt.Errorf("serialize demo state for %s: %w", ident.ID, err)
	}
	ident.State = hex.EncodeToString(state)
	return nil
}

// credentialRequest derives a participant's deterministic credential request
// the way the demo client does.
func credentialRequest(id string, seed []byte) []byte {
	h, _ := blake2b.New256(seed)
	h.Write([]byte("request:"))
	h.Write([]byte(id))
	return h.Sum(nil)
}

// resourceFromSeed converts a study seed into the signable resource form.
func resourceFromSeed(s StudySeed) engine.Resource {
	qualifier := s.Qualifier
	if qualifier == nil {
		qualifier = []string{}
	}
	disqualifier := s.Disqualifier
	if disqualifier == nil {
		disqualifier = []string{}
	}
	constraints := s.Constraints
	if constraints == nil {
		constraints = []any{}
	}
	q, _ := json.Marshal(qualifier)
	dq, _ := json.Marshal(disqualifier)
	c, _ := json.Marshal(constraints)
	return engine.Resource{
		ID:           s.ID,
		Name:         s.Name,
		Summary:      s.Abstract,
		Description:  s.Description,
		Duration:     s.Duration,
		Reward:       s.Reward,
		WebBased:     s.WebBased,
		StudyURL:     s.StudyURL,
		Qualifier:    q,
		Disqualifier: dq,
		Constraints:  c,
	}
}
