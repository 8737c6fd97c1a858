package mode

// Persona is the textual identity the tutor takes on in a mode.
// It frames replies only; the synthesized voice stays the same for the whole session.
type Persona struct {
	Name     string
	Role     string
	Greeting string
}

var personas = map[Mode]Persona{
	Learn: {
		Name: "Matthew",
		Role: "learning guide",
		Greeting: `Hello! I'm Matthew, your learning guide. I'm so glad you chose Learn mode!

I'll be explaining programming concepts in a clear, friendly way with lots of examples. Think of me as your patient teacher who's here to make complex ideas simple.

We can explore these topics together:
• Variables - storing and managing data
• Loops - repeating actions efficiently
• Functions - creating reusable code blocks
• Conditionals - making smart decisions in code
• Arrays - organizing collections of data

What would you like to learn about first?`,
	},
	Quiz: {
		Name: "Alicia",
		Role: "quiz master",
		Greeting: `Hey there! I'm Alicia, and I'm excited to be your quiz master!

Quiz mode is all about testing what you know and helping you discover what you've mastered. Don't worry - I'll be encouraging and supportive throughout!

I can quiz you on:
• Variables
• Loops
• Functions
• Conditionals
• Arrays

Which topic would you like to be quizzed on? Let's see what you know!`,
	},
	TeachBack: {
		Name: "Ken",
		Role: "learning coach",
		Greeting: `Hi! I'm Ken, your learning coach. Welcome to Teach Back mode!

This is where YOU become the teacher! Explaining concepts in your own words is one of the best ways to truly understand them. I'll listen carefully and give you helpful feedback.

You can teach me about:
• Variables
• Loops
• Functions
• Conditionals
• Arrays

Which concept would you like to explain to me? Take your time and teach me like I'm learning it for the first time!`,
	},
}

// PersonaFor returns the persona of a selectable mode.
func PersonaFor(m Mode) (Persona, bool) {
	p, ok := personas[m]
	return p, ok
}
