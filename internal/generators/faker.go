package generators

import (
	"math/rand"

	"github.com/go-faker/faker/v4"
)

type FakerKind string

const (
	FakerName      FakerKind = "name"
	FakerFirstName FakerKind = "first_name"
	FakerLastName  FakerKind = "last_name"
	FakerEmail     FakerKind = "email"
	FakerUsername  FakerKind = "username"
	FakerWord      FakerKind = "word"
	FakerSentence  FakerKind = "sentence"
	FakerURL       FakerKind = "url"
	FakerPhone     FakerKind = "phone"
	FakerCity      FakerKind = "city"
)

var cities = []string{
	"New York", "Los Angeles", "Chicago", "Houston", "Phoenix",
	"Philadelphia", "San Antonio", "San Diego", "Dallas", "San Jose",
	"London", "Paris", "Tokyo", "Berlin", "Madrid",
	"Rome", "Amsterdam", "Vienna", "Prague", "Barcelona",
	"Moscow", "Saint-Petersburg", "Budapest", "Oslo", "Lisbon",
}

// Faker draws realistic values from go-faker. faker keeps its own random
// source, so these values are not reproducible from a seed (city excepted).
type Faker struct {
	Options
	Kind FakerKind
}

func IsFakerKind(k FakerKind) bool {
	switch k {
	case FakerName, FakerFirstName, FakerLastName, FakerEmail, FakerUsername,
		FakerWord, FakerSentence, FakerURL, FakerPhone, FakerCity:
		return true
	default:
		return false
	}
}

func (g *Faker) Generate(rng *rand.Rand) any {
	return g.produce(rng, "", func(rng *rand.Rand) any {
		switch g.Kind {
		case FakerFirstName:
			return faker.FirstName()
		case FakerLastName:
			return faker.LastName()
		case FakerEmail:
			return faker.Email()
		case FakerUsername:
			return faker.Username()
		case FakerWord:
			return faker.Word()
		case FakerSentence:
			return faker.Sentence()
		case FakerURL:
			return faker.URL()
		case FakerPhone:
			return faker.Phonenumber()
		case FakerCity:
			return cities[rng.Intn(len(cities))]
		default:
			return faker.Name()
		}
	})
}
