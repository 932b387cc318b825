package bayes

import (
	"bytes"
	"encoding/gob"

	"github.com/mathiasfls/attrition/core/model"
)

// nbSnapshot mirrors the fitted state with exported fields so that gob
// can serialize it. The classifier itself keeps its state unexported.
type nbSnapshot struct {
	Alpha        float64
	FitPrior     bool
	Classes      []int
	ClassCount   []float64
	FeatureCount [][]float64
	NFeatures    int
	NSamplesSeen int
	Fitted       bool
}

// GobEncode implements gob.GobEncoder so a trained classifier can be
// persisted with model.SaveModel.
func (nb *MultinomialNB) GobEncode() ([]byte, error) {
	snap := nbSnapshot{
		Alpha:        nb.alpha,
		FitPrior:     nb.fitPrior,
		Classes:      nb.classes_,
		ClassCount:   nb.classCount_,
		FeatureCount: nb.featureCount_,
		NFeatures:    nb.nFeatures_,
		NSamplesSeen: nb.nSamplesSeen_,
	}
	if nb.state != nil {
		snap.Fitted = nb.state.IsFitted()
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder. Decoding into a zero-value
// classifier restores a model that predicts identically to the one
// encoded.
func (nb *MultinomialNB) GobDecode(data []byte) error {
	var snap nbSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}

	nb.alpha = snap.Alpha
	nb.fitPrior = snap.FitPrior
	nb.classes_ = snap.Classes
	nb.classCount_ = snap.ClassCount
	nb.featureCount_ = snap.FeatureCount
	nb.nFeatures_ = snap.NFeatures
	nb.nSamplesSeen_ = snap.NSamplesSeen

	nb.classIndex = make(map[int]int, len(snap.Classes))
	for i, c := range snap.Classes {
		nb.classIndex[c] = i
	}

	if nb.state == nil {
		nb.state = model.NewStateManager()
	}
	if snap.Fitted {
		nb.state.SetFitted()
		nb.state.SetDimensions(snap.NFeatures, snap.NSamplesSeen)
	}
	return nil
}
