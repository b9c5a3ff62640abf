package mri

import "neurod/pkg/types"

// NumClasses is the width of the classifier head.
const NumClasses = 4

// ClassNames are indexed by model output.
var ClassNames = [NumClasses]string{
	"Mild Impairment",
	"Moderate Impairment",
	"No Impairment",
	"Very Mild Impairment",
}

var descriptions = map[string]string{
	"No Impairment":        "No visible signs of Alzheimer's disease.",
	"Very Mild Impairment": "Early stage with very slight memory issues or confusion.",
	"Mild Impairment":      "Mild cognitive decline, may affect daily activities.",
	"Moderate Impairment":  "More noticeable cognitive impairment, requiring assistance.",
}

// Describe returns the description of a class name.
func Describe(name string) string {
	if d, ok := descriptions[name]; ok {
		return d
	}
	return "No description available."
}

// Result builds the prediction for an output index.
func Result(index int) types.MRIPrediction {
	name := ClassNames[index]
	return types.MRIPrediction{Prediction: name, Meaning: Describe(name)}
}
