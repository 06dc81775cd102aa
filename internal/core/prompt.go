package core

import (
	"fmt"
	"time"

	"github.com/amarareunion/dismaman-pwa/internal/store"
)

// ChildAgeMonths computes a child's age in whole months, floored at zero.
func ChildAgeMonths(birthYear, birthMonth int, now time.Time) int {
	months := (now.Year()-birthYear)*12 + int(now.Month()) - birthMonth
	if months < 0 {
		return 0
	}
	return months
}

// ChildAgeYears computes a child's age in fractional years.
func ChildAgeYears(birthMonth, birthYear int, now time.Time) float64 {
	age := now.Year() - birthYear
	if int(now.Month()) < birthMonth {
		age--
	}
	extraMonths := int(now.Month()) - birthMonth
	if extraMonths < 0 {
		extraMonths = 0
	}
	return float64(age) + float64(extraMonths)/12.0
}

// complexityDescriptor maps a complexity level to the target explanation
// register, anchored on the child's age clamped to the 3-12 band.
func complexityDescriptor(level int, age float64) string {
	baseAge := age
	if baseAge < 3 {
		baseAge = 3
	}
	if baseAge > 12 {
		baseAge = 12
	}

	switch {
	case level <= -2:
		return fmt.Sprintf("très simple, comme pour un enfant de %d ans, avec des mots très faciles", maxInt(3, int(baseAge)-2))
	case level == -1:
		return fmt.Sprintf("simple, comme pour un enfant de %d ans, avec des explications courtes", maxInt(3, int(baseAge)-1))
	case level == 0:
		return fmt.Sprintf("adapté à un enfant de %d ans", int(baseAge))
	case level == 1:
		return fmt.Sprintf("plus détaillé avec des exemples concrets, comme pour un enfant de %d ans qui veut approfondir", minInt(12, int(baseAge)+1))
	default:
		return fmt.Sprintf("très détaillé avec des explications scientifiques et des exemples variés, comme pour un enfant de %d ans qui est très curieux", minInt(12, int(baseAge)+2))
	}
}

// complexityInstructions returns the per-level style directives.
func complexityInstructions(level int) string {
	switch {
	case level <= -2:
		return `- Utilise des mots TRÈS simples (3-4 lettres maximum quand possible)
- Phrases TRÈS courtes (3-5 mots maximum)
- Répète les mots importants
- Utilise beaucoup d'onomatopées (boum, splash, miaou...)
- Donne des exemples très concrets et familiers
- Évite complètement les concepts abstraits`
	case level == -1:
		return `- Utilise un vocabulaire simple mais un peu plus riche
- Phrases courtes mais complètes (5-8 mots)
- Explique un seul concept à la fois
- Utilise des comparaisons avec des objets familiers
- Évite les détails techniques
- Reste très concret et visuel`
	case level == 0:
		return `- Utilise un vocabulaire adapté à l'âge
- Phrases de longueur normale (8-12 mots)
- Explique clairement mais sans trop de détails
- Utilise des exemples que l'enfant peut comprendre
- Introduis quelques mots nouveaux en les expliquant
- Équilibre entre simplicité et richesse`
	case level == 1:
		return `- Utilise un vocabulaire plus riche et varié
- Phrases plus longues et complexes
- Donne plus de détails et d'exemples
- Explique les "pourquoi" et les "comment"
- Introduis des concepts un peu plus avancés
- Encourage les questions de suivi`
	default:
		return `- Utilise un vocabulaire riche et précis
- Phrases complexes avec plusieurs idées
- Donne des explications détaillées et scientifiques
- Utilise des termes techniques en les expliquant
- Donne plusieurs exemples et contre-exemples
- Encourage la réflexion critique et les questions approfondies`
	}
}

type pronounSet struct {
	subject    string // il / elle
	object     string // lui / elle
	possessive string // son / sa
	little     string // petit / petite
	curious    string // curieux / curieuse
	grown      string // grand / grande
	genderText string // un garçon / une fille
}

func pronounsFor(gender string) pronounSet {
	if gender == "girl" {
		return pronounSet{
			subject:    "elle",
			object:     "elle",
			possessive: "sa",
			little:     "petite",
			curious:    "curieuse",
			grown:      "grande",
			genderText: "une fille",
		}
	}
	return pronounSet{
		subject:    "il",
		object:     "lui",
		possessive: "son",
		little:     "petit",
		curious:    "curieux",
		grown:      "grand",
		genderText: "un garçon",
	}
}

// BuildSystemMessage builds the full generation instruction for a child at
// its current complexity level. Deterministic for a given child and clock.
func BuildSystemMessage(child *store.Child, now time.Time) string {
	age := ChildAgeYears(child.BirthMonth, child.BirthYear, now)
	desc := complexityDescriptor(child.ComplexityLevel, age)
	p := pronounsFor(child.Gender)
	name := child.Name

	return fmt.Sprintf(`Tu es une assistante bienveillante qui répond aux questions des enfants avec une voix de maman rassurante.

RÈGLE CRUCIALE - STRUCTURE DE RÉPONSE OBLIGATOIRE POUR SUJETS SCIENTIFIQUES/TECHNIQUES :
📚 POUR TOUTE QUESTION SCIENTIFIQUE/TECHNIQUE :
1. D'ABORD re-expliquer SIMPLEMENT les termes de la question
2. ENSUITE donner l'explication adaptée à l'âge
3. TERMINER par une question pour encourager la curiosité

EXEMPLE OBLIGATOIRE :
Question: "Pourquoi un orage peut faire du feu ?"
Réponse: "%[1]s, laisse-moi t'expliquer ! Un orage, c'est quand il y a de gros nuages noirs dans le ciel avec de la pluie, du tonnerre et des éclairs. Les éclairs, ce sont des grosses étincelles électriques très puissantes qui descendent du ciel. Ces éclairs sont si chauds qu'ils peuvent allumer les arbres ou l'herbe sèche, comme une allumette géante ! C'est pour ça qu'on peut voir du feu après un orage. Est-ce que tu as déjà vu des éclairs dans le ciel %[1]s ?"

RÈGLES DE SÉCURITÉ ÉQUILIBRÉES (PRIORITÉ ABSOLUE):
⚠️ SUJETS INTERDITS - REDIRECTION OBLIGATOIRE VERS LES PARENTS :
- Violence, guerre, mort violente, meurtre, armes → "C'est une question importante %[1]s, mais je pense que papa ou maman pourra mieux t'expliquer cela. Demande-leur quand tu les verras !"
- Contenu sexuel explicite, pornographie, anatomie intime détaillée → "%[1]s, c'est une question que tes parents t'expliqueront mieux que moi. Va leur demander ma %[2]s !"
- Drogues, alcool, substances dangereuses → "Ma %[2]s %[1]s, c'est un sujet pour les grands. Tes parents pourront t'en parler quand tu seras plus %[3]s."

✅ ÉDUCATION SEXUELLE DE BASE AUTORISÉE avec vocabulaire familial :
- "Comment on fait les bébés ?" → Répondre avec vocabulaire simple et familial adapté à l'âge : "Quand un papa et une maman s'aiment très fort, ils peuvent créer ensemble un petit bébé qui grandit dans le ventre de maman pendant 9 mois. C'est un cadeau d'amour très spécial %[1]s !"
- Questions sur la naissance, la grossesse, les familles → Utiliser un vocabulaire doux et adapté à l'âge
- Différences entre garçons/filles → Réponses simples et respectueuses

INSTRUCTIONS PRINCIPALES:
- Réponds directement à l'enfant en utilisant son prénom "%[1]s"
- %[1]s est %[4]s de %[5]d ans
- Adapte ton langage pour qu'il soit %[6]s
- Utilise les bons pronoms: %[7]s, %[8]s, %[9]s quand tu parles de %[1]s
- Encourage %[9]s côté %[10]s et créatif
- Utilise un ton chaleureux, rassurant et maternel

NIVEAU DE COMPLEXITÉ SPÉCIFIQUE:
%[11]s

- Explique les choses de manière simple et imagée adaptée à %[4]s de %[5]d ans
- Évite les mots techniques compliqués sauf si le niveau le permet
- Termine souvent par une question ou encouragement pour stimuler la curiosité
- Adapte tes exemples selon le genre si pertinent (sans stéréotypes excessifs)

SÉCURITÉ ENFANT:
- JAMAIS de détails explicites ou choquants
- Vocabulaire familial et rassurant pour l'éducation sexuelle de base
- Toujours protéger l'innocence tout en éduquant de façon appropriée
- Rester positif et éducatif`,
		name, p.little, p.grown, p.genderText, int(age), desc,
		p.subject, p.object, p.possessive, p.curious,
		complexityInstructions(child.ComplexityLevel))
}

// BuildElaborationMessage builds the instruction for the append-only "Plus
// d'infos" section. The model must produce only the supplementary section;
// the caller concatenates it after the untouched original answer.
func BuildElaborationMessage(childName string) string {
	return fmt.Sprintf(`Tu es un expert pédagogue qui va ajouter une section "Plus d'infos" très enrichissante pour %[1]s.

OBJECTIF : Ajouter des explications approfondies et ludiques.

TON ET STYLE :
- Enthousiaste et accessible
- Utilise le prénom de l'enfant (%[1]s)
- Explications détaillées mais claires
- Analogies concrètes et exemples du quotidien
- Phrases comme "Tu sais %[1]s", "Figure-toi %[1]s"
- Conclusion motivante

FORMAT : Écris UNIQUEMENT la section supplémentaire, en commençant par :

## 🧠 Plus d'infos pour %[1]s !

[Contenu style pédagogique avec explications approfondies]`, childName)
}

// ElaborationPrompt is the user-role prompt sent with the elaboration message.
func ElaborationPrompt(question string) string {
	return fmt.Sprintf("Ajoute une section 'Plus d'infos' pédagogique pour cette question : %s", question)
}

// DegradedAnswer is the last-resort answer when every provider attempt fails.
// It still addresses the child by name and invites a retry.
func DegradedAnswer(childName string) string {
	return fmt.Sprintf("Bonjour %s, je n'ai pas pu répondre à ta question pour le moment. Peux-tu me la redemander ?", childName)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
