package engine

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"testing"
)

func newTestEngine(t *testing.T) *Local {
	t.Helper()
	seed := bytes.Repeat([]byte{0x42}, SecretSize)
	eng, err := NewLocal(seed)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return eng
}

func newOrganizerKey() (ed25519.PrivateKey, []byte) {
	key := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{0x07}, ed25519.SeedSize))
	return key, key.Public().(ed25519.PublicKey)
}

func TestKeyDerivationIsDeterministic(t *testing.T) {
	a := newTestEngine(t)
	b := newTestEngine(t)

	if !bytes.Equal(a.PublicKey(), b.PublicKey()) {
		t.Error("credential keys differ for same seed")
	}
	if !bytes.Equal(a.LedgerVerificationKey(), b.LedgerVerificationKey()) {
		t.Error("ledger keys differ for same seed")
	}
	if !bytes.Equal(a.VerificationKey(), b.VerificationKey()) {
		t.Error("verification keys differ for same seed")
	}

	other, err := NewLocal(bytes.Repeat([]byte{0x43}, SecretSize))
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if bytes.Equal(a.PublicKey(), other.PublicKey()) {
		t.Error("different seeds produced the same credential key")
	}
}

func TestNewLocalRejectsBadSecret(t *testing.T) {
	if _, err := NewLocal([]byte("short")); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestCredentialIssueAndMatch(t *testing.T) {
	eng := newTestEngine(t)

	request := []byte("participant-request")
	sig, err := eng.IssueCredential(request)
	if err != nil {
		t.Fatalf("IssueCredential: %v", err)
	}

	if !MatchCredential(sig, request) {
		t.Error("issued credential does not match its own request")
	}
	if MatchCredential(sig, []byte("someone-else")) {
		t.Error("credential matched a foreign request")
	}

	if _, err := eng.IssueCredential(nil); err == nil {
		t.Error("expected error for empty request")
	}
}

func TestResourceSignature(t *testing.T) {
	eng := newTestEngine(t)
	key, pub := newOrganizerKey()

	res := Resource{
		ID:           "study-1",
		Name:         "Example",
		Reward:       5,
		Qualifier:    json.RawMessage(`[]`),
		Disqualifier: json.RawMessage(`[]`),
		Constraints:  json.RawMessage(`[]`),
	}
	signed, err := SignResource(key, "organizer@example.org", res)
	if err != nil {
		t.Fatalf("SignResource: %v", err)
	}

	ok, err := eng.CheckResourceSignature(signed, pub)
	if err != nil {
		t.Fatalf("CheckResourceSignature: %v", err)
	}
	if !ok {
		t.Error("valid signature rejected")
	}

	signed.Resource.Reward = 500
	ok, err = eng.CheckResourceSignature(signed, pub)
	if err != nil {
		t.Fatalf("CheckResourceSignature: %v", err)
	}
	if ok {
		t.Error("tampered resource accepted")
	}

	if _, err := eng.CheckResourceSignature(signed, []byte("bad key")); err == nil {
		t.Error("expected error for malformed public key")
	}
}

func TestIssueRewardAndAppend(t *testing.T) {
	eng := newTestEngine(t)
	key, pub := newOrganizerKey()
	state := eng.NewState()

	p := ConfirmParticipation(key, "p-1", "tag-1", "study-1", []byte("req"), 5)
	entry, err := eng.IssueReward(state, p, pub, 5)
	if err != nil {
		t.Fatalf("IssueReward: %v", err)
	}

	next, err := eng.Append(state, Record{
		Participation: &p.ID,
		Tag:           p.Tag,
		Request:       p.Request,
		Signature:     p.Signature,
		Value:         p.Value,
		Coin:          entry.Coin,
		Chain:         entry.Signature,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	if next.Len() != 1 {
		t.Errorf("Len = %d, want 1", next.Len())
	}
	if !next.SpentTag("tag-1") {
		t.Error("appended tag not marked spent")
	}
	if bytes.Equal(next.Head(), state.Head()) {
		t.Error("head did not advance")
	}
	if state.Len() != 0 {
		t.Error("original state was mutated")
	}
}

func TestIssueRewardRejections(t *testing.T) {
	eng := newTestEngine(t)
	key, pub := newOrganizerKey()
	state := eng.NewState()

	p := ConfirmParticipation(key, "p-1", "tag-1", "study-1", []byte("req"), 5)

	if _, err := eng.IssueReward(state, p, pub, 7); err == nil {
		t.Error("expected rejection for wrong reward amount")
	}

	forged := *p
	forged.Signature = bytes.Repeat([]byte{1}, ed25519.SignatureSize)
	if _, err := eng.IssueReward(state, &forged, pub, 5); err == nil {
		t.Error("expected rejection for invalid signature")
	}

	otherKey := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{0x09}, ed25519.SeedSize))
	otherPub := otherKey.Public().(ed25519.PublicKey)
	if _, err := eng.IssueReward(state, p, otherPub, 5); err == nil {
		t.Error("expected rejection for wrong organizer key")
	}
}

func TestAppendRejectsDuplicateTag(t *testing.T) {
	eng := newTestEngine(t)
	key, pub := newOrganizerKey()
	state := eng.NewState()

	p := ConfirmParticipation(key, "p-1", "tag-1", "study-1", []byte("req"), 5)
	entry, err := eng.IssueReward(state, p, pub, 5)
	if err != nil {
		t.Fatalf("IssueReward: %v", err)
	}
	rec := Record{
		Participation: &p.ID,
		Tag:           p.Tag,
		Request:       p.Request,
		Signature:     p.Signature,
		Value:         p.Value,
		Coin:          entry.Coin,
		Chain:         entry.Signature,
	}

	next, err := eng.Append(state, rec)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Same record again: the chain signature no longer matches the advanced
	// head, and even a re-signed entry would trip the tag check.
	if _, err := eng.Append(next, rec); err == nil {
		t.Fatal("expected duplicate append to fail")
	}
}

func TestReplayFoldIsDeterministic(t *testing.T) {
	eng := newTestEngine(t)
	key, pub := newOrganizerKey()

	var records []Record
	state := eng.NewState()
	for i := 0; i < 3; i++ {
		p := ConfirmParticipation(key, fmt.Sprintf("p-%d", i), fmt.Sprintf("tag-%d", i), "study-1", []byte{byte(i)}, 5)
		entry, err := eng.IssueReward(state, p, pub, 5)
		if err != nil {
			t.Fatalf("IssueReward %d: %v", i, err)
		}
		rec := Record{
			Participation: &p.ID,
			Tag:           p.Tag,
			Request:       p.Request,
			Signature:     p.Signature,
			Value:         p.Value,
			Coin:          entry.Coin,
			Chain:         entry.Signature,
		}
		state, err = eng.Append(state, rec)
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		records = append(records, rec)
	}

	replayed := eng.NewState()
	for i, rec := range records {
		var err error
		replayed, err = eng.Append(replayed, rec)
		if err != nil {
			t.Fatalf("replay Append %d: %v", i, err)
		}
	}

	if !bytes.Equal(replayed.Head(), state.Head()) {
		t.Errorf("replayed head %x != original head %x", replayed.Head(), state.Head())
	}
	if replayed.Len() != state.Len() {
		t.Errorf("replayed len %d != original len %d", replayed.Len(), state.Len())
	}
}

func buildProof(eng *Local, target, recipient string, value int, spend map[string]int) []byte {
	inputs := make([]payoutInput, 0, MaxInputs)
	for n, v := range spend {
		inputs = append(inputs, payoutInput{Nullifier: []byte(n), Value: v})
	}
	for i := len(inputs); i < MaxInputs; i++ {
		inputs = append(inputs, payoutInput{Nullifier: []byte(fmt.Sprintf("null-%s-%d", target, i)), Value: 0})
	}
	blob, _ := json.Marshal(payoutProof{
		Target:    target,
		Recipient: recipient,
		Value:     value,
		Inputs:    inputs,
		CVK:       eng.VerificationKey(),
	})
	return blob
}

func TestPayoutSingleUse(t *testing.T) {
	eng := newTestEngine(t)
	state := eng.NewState()

	proof := buildProof(eng, "paypal", "alice@example.org", 5, map[string]int{"coin-a": 5})
	res, err := eng.CheckPayoutRequest(state, proof)
	if err != nil {
		t.Fatalf("CheckPayoutRequest: %v", err)
	}
	if res.Value != 5 || res.Target != "paypal" {
		t.Errorf("unexpected result: %+v", res)
	}

	next, err := eng.Append(state, Record{
		Tag:   PayoutTag(res.Target, res.Recipient),
		Value: res.Value,
		Coin:  res.Receipt,
		Chain: res.Chain,
	})
	if err != nil {
		t.Fatalf("Append payout: %v", err)
	}
	if !next.SpentNullifier([]byte("coin-a")) {
		t.Error("payout nullifier not marked spent after append")
	}

	// Spending the same coin towards a different target must fail.
	second := buildProof(eng, "giftcard", "alice@example.org", 5, map[string]int{"coin-a": 5})
	if _, err := eng.CheckPayoutRequest(next, second); err == nil {
		t.Fatal("expected spent nullifier to be rejected")
	}
}

func TestPayoutRejections(t *testing.T) {
	eng := newTestEngine(t)
	state := eng.NewState()

	// Insufficient balance.
	proof := buildProof(eng, "paypal", "a", 10, map[string]int{"coin-a": 5})
	if _, err := eng.CheckPayoutRequest(state, proof); err == nil {
		t.Error("expected insufficient balance rejection")
	}

	// Wrong padding length.
	var p payoutProof
	if err := json.Unmarshal(buildProof(eng, "paypal", "a", 5, map[string]int{"coin-a": 5}), &p); err != nil {
		t.Fatalf("unmarshal proof: %v", err)
	}
	p.Inputs = p.Inputs[:MaxInputs-1]
	short, _ := json.Marshal(p)
	if _, err := eng.CheckPayoutRequest(state, short); err == nil {
		t.Error("expected invalid padding rejection")
	}

	// Foreign verification key.
	p.Inputs = append(p.Inputs, payoutInput{Nullifier: []byte("pad"), Value: 0})
	p.CVK = bytes.Repeat([]byte{9}, 32)
	foreign, _ := json.Marshal(p)
	if _, err := eng.CheckPayoutRequest(state, foreign); err == nil {
		t.Error("expected invalid public key rejection")
	}

	// Duplicate nullifier within one proof.
	dup := payoutProof{Target: "t", Recipient: "r", Value: 1, CVK: eng.VerificationKey()}
	for i := 0; i < MaxInputs; i++ {
		dup.Inputs = append(dup.Inputs, payoutInput{Nullifier: []byte("same"), Value: 1})
	}
	dupBlob, _ := json.Marshal(dup)
	if _, err := eng.CheckPayoutRequest(state, dupBlob); err == nil {
		t.Error("expected duplicate nullifier rejection")
	}

	// Zero value payouts are pointless and rejected.
	zero := buildProof(eng, "paypal", "a", 0, map[string]int{"coin-a": 5})
	if _, err := eng.CheckPayoutRequest(state, zero); err == nil {
		t.Error("expected zero value rejection")
	}
}

func TestIssueNulls(t *testing.T) {
	eng := newTestEngine(t)

	valid, _ := json.Marshal([]nullRequest{{M: []int64{0}}, {M: []int64{0}}})
	out, err := eng.IssueNulls(valid)
	if err != nil {
		t.Fatalf("IssueNulls: %v", err)
	}
	var coins [][]byte
	if err := json.Unmarshal(out, &coins); err != nil {
		t.Fatalf("unmarshal coins: %v", err)
	}
	if len(coins) != 2 {
		t.Errorf("got %d coins, want 2", len(coins))
	}

	tooMany, _ := json.Marshal([]nullRequest{{M: []int64{0, 0}}})
	if _, err := eng.IssueNulls(tooMany); err == nil {
		t.Error("expected rejection for multiple attributes")
	}

	nonZero, _ := json.Marshal([]nullRequest{{M: []int64{3}}})
	if _, err := eng.IssueNulls(nonZero); err == nil {
		t.Error("expected rejection for non-zero value")
	}
}
