package eeg

import "neurod/pkg/types"

var meanings = map[int]string{
	1: "Healthy brain activity",
	2: "Mild epileptic activity",
	3: "Moderate epileptic activity",
	4: "Severe epileptic activity",
	5: "Seizure state",
}

// Meaning returns the description of a 1-based class, "Unknown" outside 1..5.
func Meaning(class int) string {
	if m, ok := meanings[class]; ok {
		return m
	}
	return "Unknown"
}

// Result builds the prediction for a 0-based output index.
func Result(index int) types.EEGPrediction {
	class := index + 1
	return types.EEGPrediction{Prediction: class, Meaning: Meaning(class)}
}
