package knowledge

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/WessleyAI/medrag/engine/domain"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCorpus marks a corpus file that cannot be seeded.
var ErrInvalidCorpus = errors.New("invalid corpus")

// DefaultCorpus returns the built-in reference documents. The slice is a
// fresh copy on every call.
func DefaultCorpus() []domain.ReferenceDocument {
	out := make([]domain.ReferenceDocument, len(builtin))
	copy(out, builtin)
	return out
}

// corpusFile is the on-disk layout accepted by LoadCorpusFile.
type corpusFile struct {
	Documents []domain.ReferenceDocument `yaml:"documents"`
}

// LoadCorpusFile reads a YAML corpus of the form:
//
//	documents:
//	  - condition: Migraine
//	    category: neurological
//	    content: ...
func LoadCorpusFile(path string) ([]domain.ReferenceDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: read corpus: %w", err)
	}
	var f corpusFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("knowledge: parse corpus %s: %w", path, err)
	}
	if err := ValidateCorpus(f.Documents); err != nil {
		return nil, fmt.Errorf("knowledge: corpus %s: %w", path, err)
	}
	return f.Documents, nil
}

// ValidateCorpus rejects empty corpora and documents without content or condition.
func ValidateCorpus(docs []domain.ReferenceDocument) error {
	if len(docs) == 0 {
		return domain.NewValidationError("corpus", "", ErrInvalidCorpus)
	}
	for i, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			return domain.NewValidationError(fmt.Sprintf("documents[%d].content", i), d.Condition, ErrInvalidCorpus)
		}
		if strings.TrimSpace(d.Condition) == "" {
			return domain.NewValidationError(fmt.Sprintf("documents[%d].condition", i), "", ErrInvalidCorpus)
		}
	}
	return nil
}

var builtin = []domain.ReferenceDocument{
	{
		Condition: "Migraine",
		Category:  "neurological",
		Content: "Migraine is a neurological condition that causes a throbbing headache, usually on one side of the head. " +
			"The headache is often accompanied by nausea, vomiting, and sensitivity to light and sound. Some people see an aura " +
			"of flashing lights before the pain starts. Attacks can last from 4 to 72 hours. Resting in a dark, quiet room, " +
			"hydration, and over-the-counter pain relief taken early can help; recurring migraines with nausea should be " +
			"reviewed by a doctor, who may prescribe triptans or preventive medication.",
	},
	{
		Condition: "Tension Headache",
		Category:  "neurological",
		Content: "Tension-type headache is the most common type of headache. It feels like a dull, constant pressure or a tight " +
			"band around the forehead, temples, or back of the neck. It is linked to stress, poor posture, eye strain, and " +
			"lack of sleep. Over-the-counter pain relievers, regular breaks from screens, massage, and stress management usually help.",
	},
	{
		Condition: "Common Cold",
		Category:  "respiratory",
		Content: "The common cold is a viral infection of the nose and throat. Symptoms include a runny or stuffy nose, sore " +
			"throat, sneezing, cough, mild body aches, and sometimes a low-grade fever. It usually resolves within 7 to 10 days. " +
			"Rest, fluids, saline nasal spray, and throat lozenges relieve symptoms; antibiotics do not help viral colds.",
	},
	{
		Condition: "Influenza",
		Category:  "respiratory",
		Content: "Influenza (flu) is a contagious respiratory illness that starts suddenly with high fever, chills, muscle aches, " +
			"fatigue, dry cough, and sore throat. It is usually more severe than a cold. Antiviral medication works best when " +
			"started within 48 hours. Seek care for difficulty breathing, chest pain, or confusion, especially in older adults.",
	},
	{
		Condition: "COVID-19",
		Category:  "respiratory",
		Content: "COVID-19 is caused by the SARS-CoV-2 virus. Common symptoms are fever, cough, fatigue, loss of taste or smell, " +
			"sore throat, and shortness of breath. Testing confirms the diagnosis. Most cases are mild and managed with rest and " +
			"fluids; low oxygen levels, persistent chest pressure, or bluish lips need emergency care.",
	},
	{
		Condition: "Gastroenteritis",
		Category:  "digestive",
		Content: "Gastroenteritis, often called stomach flu, is an inflammation of the stomach and intestines caused by viruses " +
			"or bacteria. It causes watery diarrhea, abdominal cramps, vomiting, nausea, and sometimes fever. The main risk is " +
			"dehydration, so small frequent sips of oral rehydration solution are important. Blood in the stool needs medical review.",
	},
	{
		Condition: "Dehydration",
		Category:  "general",
		Content: "Dehydration happens when the body loses more fluid than it takes in, for example through sweating, diarrhea, " +
			"or vomiting. Signs include thirst, dark urine, dry mouth, dizziness, tiredness, and reduced urination. Oral fluids " +
			"with electrolytes treat mild cases. Confusion, fainting, or no urine for many hours requires urgent care.",
	},
	{
		Condition: "Hypertension",
		Category:  "cardiovascular",
		Content: "Hypertension (high blood pressure) often has no symptoms, which is why regular measurement matters. Readings " +
			"consistently at or above 130/80 mmHg are considered high. Long-term it raises the risk of heart attack, stroke, and " +
			"kidney disease. Treatment includes reducing salt, exercise, weight control, limiting alcohol, and prescribed medication.",
	},
	{
		Condition: "Type 2 Diabetes",
		Category:  "endocrine",
		Content: "Type 2 diabetes is a chronic condition in which the body does not use insulin properly, leading to high blood " +
			"sugar. Symptoms include increased thirst, frequent urination, blurred vision, slow-healing sores, and fatigue. " +
			"Management combines diet, physical activity, blood glucose monitoring, and medication such as metformin.",
	},
	{
		Condition: "Asthma",
		Category:  "respiratory",
		Content: "Asthma is a chronic disease of the airways that causes wheezing, shortness of breath, chest tightness, and " +
			"coughing, often at night or after exercise. Triggers include pollen, dust, smoke, and cold air. Inhaled " +
			"corticosteroids control inflammation and a rescue inhaler relieves attacks. Severe breathlessness is an emergency.",
	},
	{
		Condition: "Allergic Rhinitis",
		Category:  "respiratory",
		Content: "Allergic rhinitis (hay fever) is an allergic reaction to pollen, dust mites, or pet dander. It causes sneezing, " +
			"itchy and watery eyes, a runny nose, and nasal congestion without fever. Antihistamines, steroid nasal sprays, and " +
			"avoiding known triggers are the usual treatments.",
	},
	{
		Condition: "Urinary Tract Infection",
		Category:  "urological",
		Content: "A urinary tract infection (UTI) is a bacterial infection of the bladder or urethra. Symptoms include a burning " +
			"sensation when urinating, frequent urge to urinate, cloudy or strong-smelling urine, and lower abdominal pain. It is " +
			"treated with antibiotics. Fever, back pain, or shaking chills may mean a kidney infection and need prompt care.",
	},
	{
		Condition: "Gastroesophageal Reflux Disease",
		Category:  "digestive",
		Content: "Gastroesophageal reflux disease (GERD) occurs when stomach acid flows back into the esophagus. It causes " +
			"heartburn, a sour taste, regurgitation, and discomfort after meals or when lying down. Smaller meals, avoiding late " +
			"eating, raising the head of the bed, and antacids or acid-reducing medication help.",
	},
	{
		Condition: "Anxiety",
		Category:  "mental health",
		Content: "Anxiety disorders involve persistent worry or fear that interferes with daily life. Physical symptoms include " +
			"a racing heart, rapid breathing, restlessness, trouble sleeping, and muscle tension. Talking therapies such as CBT, " +
			"regular exercise, and sometimes medication are effective. Panic attacks can mimic heart problems and should be evaluated.",
	},
	{
		Condition: "Pneumonia",
		Category:  "respiratory",
		Content: "Pneumonia is an infection that inflames the air sacs in one or both lungs. Symptoms include cough with phlegm, " +
			"fever, chills, sharp chest pain when breathing, and shortness of breath. Bacterial pneumonia is treated with " +
			"antibiotics. Older adults, infants, and people with chronic illness are at higher risk and should seek care early.",
	},
	{
		Condition: "Iron Deficiency Anemia",
		Category:  "hematological",
		Content: "Iron deficiency anemia means the blood lacks enough healthy red blood cells because of low iron. It causes " +
			"tiredness, pale skin, shortness of breath on exertion, cold hands and feet, and brittle nails. A blood test " +
			"confirms it. Treatment includes iron-rich foods and supplements, and finding the cause of any blood loss.",
	},
	{
		Condition: "Emergency Warning Signs",
		Category:  "urgent",
		Content: "Call emergency services immediately for chest pain spreading to the arm or jaw, sudden weakness or numbness " +
			"on one side of the body, slurred speech, the worst headache of your life, severe difficulty breathing, fainting, " +
			"heavy bleeding, or thoughts of self-harm. These can signal heart attack, stroke, or other life-threatening conditions.",
	},
}
