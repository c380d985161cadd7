package disease

// Record is the advisory text shown for a class.
type Record struct {
	Diagnosis string `json:"diagnosis"`
	Treatment string `json:"treatment"`
}

var healthy = Record{
	Diagnosis: "The plant is healthy.",
	Treatment: "Maintain standard care practices.",
}

// Diagnoses is the bundled label -> advice table. Keys must match ClassIndices.
var Diagnoses = map[string]Record{
	"Apple__Apple_scab": {
		Diagnosis: "Fungal disease causing scabby spots. Requires intervention to prevent spread.",
		Treatment: "Apply copper-based fungicide and remove fallen leaves.",
	},
	"Apple__Black_rot": {
		Diagnosis: "Advanced fungal rot that often leads to internal decay and can spread to other fruit.",
		Treatment: "Prune out dead wood immediately and use protective sprays.",
	},
	"Apple__Cedar_apple_rust": {
		Diagnosis: "Rust disease characterized by orange/yellow spots, requiring local control measures.",
		Treatment: "Use preventative fungicide early in the spring.",
	},
	"Apple__healthy": {
		Diagnosis: "The plant shows no signs of disease and appears perfectly healthy.",
		Treatment: "Continue routine care and monitoring.",
	},
	"Blueberry__healthy": healthy,
	"Cherry_(including_sour)__Powdery_mildew": {
		Diagnosis: "White, powdery fungal growth on leaves and twigs. Can stunt growth.",
		Treatment: "Apply sulfur fungicide and ensure good air circulation.",
	},
	"Cherry_(including_sour)__healthy": healthy,
	"Corn_(maize)__Cercospora_leaf_spot_Gray_leaf_spot": {
		Diagnosis: "Severe fungal leaf spot causing gray, rectangular lesions. Can significantly reduce yield.",
		Treatment: "Rotate crops and apply foliar fungicides.",
	},
	"Corn_(maize)__Common_rust": {
		Diagnosis: "Pustules containing reddish-brown spores on leaves. Common in cool, moist conditions.",
		Treatment: "Use resistant hybrids or apply fungicide at the first sign of rust.",
	},
	"Corn_(maize)__Northern_Leaf_Blight": {
		Diagnosis: "Long, cigar-shaped gray-green lesions on leaves, leading to leaf death.",
		Treatment: "Plant resistant varieties and use timely fungicide application.",
	},
	"Corn_(maize)__healthy": healthy,
	"Grape__Black_rot": {
		Diagnosis: "Destructive fungal disease causing shriveled, mummified berries.",
		Treatment: "Practice good sanitation (remove mummies) and use protective fungicide schedule.",
	},
	"Grape__Esca_(Black_Measles)": {
		Diagnosis: "A wood-canker disease causing leaf discoloration and eventual vine collapse.",
		Treatment: "Prune infected wood back to healthy tissue and seal cuts.",
	},
	"Grape__Leaf_blight_(Isariopsis_Leaf_Spot)": {
		Diagnosis: "Causes small, dark leaf spots. Generally less severe than other grape diseases.",
		Treatment: "Maintain general fungicide program; ensure good air flow.",
	},
	"Grape__healthy": healthy,
	"Orange__Haunglongbing_(Citrus_greening)": {
		Diagnosis: "A serious bacterial disease spread by psyllids, causing blotchy mottling on leaves and distorted fruit.",
		Treatment: "No cure; management involves removing infected trees and controlling psyllid vectors.",
	},
	"Peach__Bacterial_spot": {
		Diagnosis: "Bacterial infection causing small, dark, angular spots on leaves and fruit.",
		Treatment: "Use resistant varieties and apply copper bactericides.",
	},
	"Peach__healthy": healthy,
	"Pepper,_bell__Bacterial_spot": {
		Diagnosis: "Bacterial infection causing irregular, dark spots on leaves and scabs on fruit.",
		Treatment: "Use disease-free seeds/transplants and apply copper-based sprays.",
	},
	"Pepper,_bell__healthy": healthy,
	"Potato__Early_blight": {
		Diagnosis: "Fungal disease causing dark, concentric rings on older leaves (target spots).",
		Treatment: "Rotate crops, use resistant cultivars, and apply fungicides.",
	},
	"Potato__Late_blight": {
		Diagnosis: "Highly aggressive water mold causing rapid tissue death. Appears as dark, water-soaked spots.",
		Treatment: "Immediate and aggressive use of fungicides is required.",
	},
	"Potato__healthy":    healthy,
	"Raspberry__healthy": healthy,
	"Soybean__healthy":   healthy,
	"Squash__Powdery_mildew": {
		Diagnosis: "White, powdery coating on leaves, reducing photosynthesis and yield.",
		Treatment: "Apply horticultural oil or biological control agents.",
	},
	"Strawberry__Leaf_scorch": {
		Diagnosis: "Fungal infection causing purple to brown spots, leading to leaves appearing scorched.",
		Treatment: "Mow/remove old leaves after harvest and use an appropriate fungicide.",
	},
	"Strawberry__healthy": healthy,
	"Tomato__Bacterial_spot": {
		Diagnosis: "Bacterial disease causing dark, angular spots on leaves and raised scabs on fruit.",
		Treatment: "Use copper sprays and avoid working with plants when wet.",
	},
	"Tomato__Early_blight": {
		Diagnosis: "Fungal disease causing dark spots with concentric rings on older leaves.",
		Treatment: "Fungicide treatment (chlorothalonil) and good sanitation.",
	},
	"Tomato__Late_blight": {
		Diagnosis: "Highly aggressive disease causing large, dark, water-soaked lesions. Requires immediate action.",
		Treatment: "Aggressive application of fungicides.",
	},
	"Tomato__Leaf_Mold": {
		Diagnosis: "Fungal disease causing velvety, olive-green/brown spots on the underside of leaves, common in greenhouses.",
		Treatment: "Increase ventilation and reduce humidity.",
	},
	"Tomato__Septoria_leaf_spot": {
		Diagnosis: "Fungal infection causing small, circular spots with gray centers. Causes premature leaf drop.",
		Treatment: "Apply fungicides and practice crop rotation.",
	},
	"Tomato__Spider_mites_Two-spotted_spider_mite": {
		Diagnosis: "Pest infestation causing yellow stippling and fine webbing on leaves.",
		Treatment: "Use miticides or horticultural oils/soaps.",
	},
	"Tomato__Target_Spot": {
		Diagnosis: "Fungal disease causing dark spots with light centers, resembling a bullseye.",
		Treatment: "Fungicide applications and proper watering (avoid overhead watering).",
	},
	"Tomato__Tomato_Yellow_Leaf_Curl_Virus": {
		Diagnosis: "Viral disease transmitted by whiteflies, causing severe stunting and leaf curling.",
		Treatment: "No cure; control whitefly population and remove infected plants.",
	},
	"Tomato__Tomato_mosaic_virus": {
		Diagnosis: "Viral disease causing a mosaic pattern (light and dark green areas) and distorted leaves.",
		Treatment: "No cure; remove infected plants and avoid using tobacco products near plants.",
	},
	"Tomato__healthy": healthy,
	UnknownClass: {
		Diagnosis: "Prediction failed or class not recognized by the model. Check image clarity.",
		Treatment: "Consult a local agricultural expert for tailored advice.",
	},
}
