package aqi

// Audience is a group of people that health advice is written for
type Audience string

const (
	Asthma  Audience = "asthma"
	COPD    Audience = "copd"
	General Audience = "general"
)

// Advice holds one recommendation per audience
type Advice struct {
	Asthma  string `json:"asthma"`
	COPD    string `json:"copd"`
	General string `json:"general"`
}

// For returns the recommendation for one audience
func (a Advice) For(who Audience) string {
	switch who {
	case Asthma:
		return a.Asthma
	case COPD:
		return a.COPD
	default:
		return a.General
	}
}

var adviceBands = []struct {
	upTo   float64
	advice Advice
}{
	{50, Advice{
		Asthma:  "Safe air, a good time for outdoor activity.",
		COPD:    "Stable conditions, going out with the usual care is fine.",
		General: "Excellent time to be outside.",
	}},
	{100, Advice{
		Asthma:  "Moderate air may bother people with asthma; avoid long outdoor exertion.",
		COPD:    "Limit intense activity and watch for symptoms.",
		General: "Fine for most people, sensitive people may notice some discomfort.",
	}},
	{150, Advice{
		Asthma:  "Limit time outdoors and carry your medication.",
		COPD:    "Reduce exposure to outdoor air.",
		General: "Moderate activity is fine, but keep it short.",
	}},
}

var adviceDangerous = Advice{
	Asthma:  "Stay indoors; wear a mask if you must go out and avoid any exertion.",
	COPD:    "Stay in protected spaces and avoid outdoor exposure.",
	General: "Avoid going out as much as possible.",
}

// Advise returns health advice for an AQI value
func Advise(aqi float64) Advice {
	for _, band := range adviceBands {
		if aqi <= band.upTo {
			return band.advice
		}
	}
	return adviceDangerous
}

// AdviceFor is Advise for an optional AQI; ok is false when the AQI is undefined
func AdviceFor(aqi *float64) (Advice, bool) {
	if aqi == nil {
		return Advice{}, false
	}
	return Advise(*aqi), true
}
