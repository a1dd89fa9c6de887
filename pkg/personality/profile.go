// Package personality holds the Big Five trait profile of an NPC.
//
// Traits are data only. Nothing in the decision engine reads them yet; they are
// exposed so prompt builders and future decision logic can.
package personality

const DefaultTrait = 0.5

// Traits is the plain serializable form of a Profile.
type Traits struct {
	Openness          float64 `json:"openness"`
	Conscientiousness float64 `json:"conscientiousness"`
	Extraversion      float64 `json:"extraversion"`
	Agreeableness     float64 `json:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism"`
}

// Profile keeps every trait within [0, 1].
type Profile struct {
	openness          float64
	conscientiousness float64
	extraversion      float64
	agreeableness     float64
	neuroticism       float64
}

// New returns a profile with every trait at DefaultTrait.
func New() Profile {
	return Profile{
		openness:          DefaultTrait,
		conscientiousness: DefaultTrait,
		extraversion:      DefaultTrait,
		agreeableness:     DefaultTrait,
		neuroticism:       DefaultTrait,
	}
}

// FromTraits builds a profile, clamping each trait.
func FromTraits(t Traits) Profile {
	var p Profile
	p.SetOpenness(t.Openness)
	p.SetConscientiousness(t.Conscientiousness)
	p.SetExtraversion(t.Extraversion)
	p.SetAgreeableness(t.Agreeableness)
	p.SetNeuroticism(t.Neuroticism)
	return p
}

func (p Profile) Traits() Traits {
	return Traits{
		Openness:          p.openness,
		Conscientiousness: p.conscientiousness,
		Extraversion:      p.extraversion,
		Agreeableness:     p.agreeableness,
		Neuroticism:       p.neuroticism,
	}
}

func (p Profile) Openness() float64          { return p.openness }
func (p Profile) Conscientiousness() float64 { return p.conscientiousness }
func (p Profile) Extraversion() float64      { return p.extraversion }
func (p Profile) Agreeableness() float64     { return p.agreeableness }
func (p Profile) Neuroticism() float64       { return p.neuroticism }

func (p *Profile) SetOpenness(v float64)          { p.openness = clamp(v) }
func (p *Profile) SetConscientiousness(v float64) { p.conscientiousness = clamp(v) }
func (p *Profile) SetExtraversion(v float64)      { p.extraversion = clamp(v) }
func (p *Profile) SetAgreeableness(v float64)     { p.agreeableness = clamp(v) }
func (p *Profile) SetNeuroticism(v float64)       { p.neuroticism = clamp(v) }

// clamp bounds v to [0, 1]. NaN becomes 0.
func clamp(v float64) float64 {
	if !(v >= 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
