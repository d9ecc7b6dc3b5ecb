package journal

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"time"
)

type signaturePayload struct {
	RecordID          string `json:"recordId"`
	CycleID           string `json:"cycleId"`
	GameID            string `json:"gameId"`
	Mode              string `json:"mode"`
	Wager             int64  `json:"wager"`
	Settled           int64  `json:"settled"`
	Payout            int64  `json:"payout"`
	PrizeDivision     int    `json:"prizeDivision"`
	PrizeValue        int64  `json:"prizeValue"`
	MerchandiseTierID string `json:"merchandiseTierId,omitempty"`
	RevealRounds      int    `json:"revealRounds"`
	ClosedAt          string `json:"closedAt"`
}

func buildSignaturePayload(rec *Record) signaturePayload {
	return signaturePayload{
		RecordID:          rec.RecordID.String(),
		CycleID:           rec.CycleID.String(),
		GameID:            rec.GameID,
		Mode:              string(rec.Mode),
		Wager:             rec.Wager,
		Settled:           rec.Settled,
		Payout:            rec.Payout,
		PrizeDivision:     rec.PrizeDivision,
		PrizeValue:        rec.PrizeValue,
		MerchandiseTierID: rec.MerchandiseTierID,
		RevealRounds:      rec.RevealRounds,
		ClosedAt:          rec.ClosedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Sign generates an HMAC signature for the record.
func Sign(rec *Record, key []byte) ([]byte, error) {
	data, err := json.Marshal(buildSignaturePayload(rec))
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write(data)
	return mac.Sum(nil), nil
}

// VerifySignature verifies the HMAC signature for the record.
func VerifySignature(rec *Record, key []byte) (bool, error) {
	if len(rec.Signature) == 0 {
		return false, nil
	}
	expected, err := Sign(rec, key)
	if err != nil {
		return false, err
	}
	return hmac.Equal(expected, rec.Signature), nil
}
