package analysis

// Prompt asks for the five educational sections the formatter knows how to lay out.
const Prompt = "Analyze this skin condition image for educational purposes and provide the following information:\n" +
	"1. Preliminary assessment (appearance, distribution, affected area)\n" +
	"2. Characteristics (color, texture, pattern)\n" +
	"3. Common triggers & factors\n" +
	"4. General information\n" +
	"5. Important notices and precautions\n" +
	"\n" +
	"IMPORTANT: Emphasize that this is for educational purposes only and should never replace professional medical advice."

// DefaultAnalysis is shown next to the bundled example image. It is never sent for inference.
const DefaultAnalysis = `1. Preliminary Assessment:
- Appearance: Red, raised bumps
- Distribution: Clustered pattern
- Affected Area: Skin surface
- Notable Features: Mild inflammation
- Possible Type: Common skin rash

2. Characteristics:
- Color: Reddish
- Texture: Slightly raised
- Pattern: Grouped lesions
- Size: Small to medium bumps
- Associated Signs: Mild swelling

3. Common Triggers & Factors:
- Environmental: Various allergens
- Physical: Friction or pressure
- Temperature: Heat or cold exposure
- Time Pattern: Can vary
- Aggravating Factors: Various

4. General Information:
- Common Occurrence: Frequently seen
- Age Groups: Can affect any age
- Duration: Variable
- Similar Conditions: Multiple possibilities
- Educational Notes: Common skin reaction

5. Important Notice:
- This is an educational analysis only
- Not a medical diagnosis
- Consult healthcare provider
- Seek immediate care if severe
- Individual cases may vary`

// Disclaimer accompanies the tool at all times.
const Disclaimer = "This tool is for educational purposes only and should not replace professional medical advice. " +
	"If you're experiencing severe symptoms, spreading rash, fever, or other concerning symptoms, " +
	"please seek immediate medical attention."

// AnalysisDisclaimer accompanies every rendered analysis.
const AnalysisDisclaimer = "This analysis is for educational purposes only and should not be used for self-diagnosis " +
	"or treatment decisions. Always consult with qualified healthcare professionals for proper " +
	"diagnosis and treatment of skin conditions. If you're experiencing severe symptoms, " +
	"spreading rash, fever, or other concerning symptoms, please seek immediate medical attention."
