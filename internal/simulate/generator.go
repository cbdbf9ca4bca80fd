package simulate

import (
	"fmt"
	"math/rand/v2"

	"github.com/okian/ranked/internal/domain/model"
)

var (
	firstNames = []string{"Ada", "Grace", "Alan", "Edsger", "Barbara", "Donald", "Frances", "Ken", "Radia", "Leslie"}
	lastNames  = []string{"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Knuth", "Allen", "Thompson", "Perlman", "Lamport"}
	majors     = []string{"Computer Science", "Mathematics", "Physics", "Economics", "Design"}
	degrees    = []string{"BSc", "BA", "MSc", "PhD"}
	clubs      = []string{"Chess", "Robotics", "Debate", "Climbing", "Jazz", "Hackathon"}
	companies  = []string{"Acme", "Globex", "Initech", "Umbrella", "Hooli"}
	titles     = []string{"Intern", "Engineer", "Analyst", "Researcher"}
)

// generateProfiles builds n valid profiles with ids prefix-0..prefix-(n-1).
func generateProfiles(n int, seed uint64, prefix string) []model.Profile {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]model.Profile, 0, n)
	for i := 0; i < n; i++ {
		p := model.Profile{
			ID:   fmt.Sprintf("%s-%d", prefix, i),
			Name: firstNames[r.IntN(len(firstNames))] + " " + lastNames[r.IntN(len(lastNames))],
			Education: model.Education{
				Degree:         degrees[r.IntN(len(degrees))],
				Major:          majors[r.IntN(len(majors))],
				GraduationYear: 2024 + r.IntN(5),
			},
		}
		perm := r.Perm(len(clubs))
		for _, j := range perm[:r.IntN(model.MaxClubs+1)] {
			p.Clubs = append(p.Clubs, clubs[j])
		}
		for k := r.IntN(model.MaxExperiences + 1); k > 0; k-- {
			p.Experiences = append(p.Experiences, model.Experience{
				Title:   titles[r.IntN(len(titles))],
				Company: companies[r.IntN(len(companies))],
			})
		}
		out = append(out, p)
	}
	return out
}
