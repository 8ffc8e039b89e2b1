package junkfilter

import "testing"

func TestDefaultRules_Junk(t *testing.T) {
	junk := []string{
		"Registration Number: ________",
		"Reg. No. 2023CS101",
		"ROLL NO: 123",
		"Seat No. 4417",
		"Candidate's Name: ............",
		"Student Name:",
		"Hall Ticket Number",
		"Enrollment No. 99",
		"Page 2",
		"-- 3 of 12 --",
		"Total number of pages: 4",
		"Question Paper Code: 51234",
		"Q. Code 776",
		"SET - A",
		"Series 2 (Code 55/1)",
		"Model Question Paper 2024",
		"Time: 3 hours",
		"Time Allowed: 3 Hrs",
		"Duration: 180 minutes",
		"Maximum Marks: 100",
		"Max. Marks 80",
		"Full Marks 70",
		"There is no negative marking.",
		"CBSE Board Examination",
		"Anna University, Chennai",
		"Class X Mathematics",
		"Fifth Semester Examination",
		"Second Year B.Sc Physics",
		"Course Code: CS301",
		"Programme: Computer Applications",
		"B.Tech Degree Examination",
		"Answer all questions.",
		"Attempt any five of the following",
		"General Instructions:",
		"Figures in the right-hand margin indicate marks",
		"Use of scientific calculator is permitted",
		"Draw neat diagrams wherever necessary",
		"Assume suitable data if necessary",
		"PART - A",
		"Part II (Descriptive)",
		"Section-B",
		"CO Level BT Level",
		"Course Outcomes mapped",
		"Bloom's Taxonomy Level",
		"Learning outcome 3",
		"Very Short Answer Type Questions",
		"Long answer questions (5 marks each)",
		"Objective Type Questions",
		"Multiple Choice Questions",
		"MCQs (1 mark each)",
		"Fill in the blanks",
		"True or False",
		"Match the following:",
		"Assertion and Reason questions",
		"Numerical value type questions",
		"——————",
		"__________",
		"************",
		"||||||",
		"=========",
		"-------------",
		"12",
		"(b)",
		"iv.",
	}
	f := New()
	for _, line := range junk {
		if !f.IsJunk(line) {
			t.Errorf("expected junk: %q", line)
		}
	}
}

func TestDefaultRules_Questions(t *testing.T) {
	// WHAT: Ordinary question lines survive the rule table.
	// WHY: Rules match whole words and anchor code-like patterns to line start.
	questions := []string{
		"Explain the flow of a viscous fluid through a pipe.",
		"Calculate the simple interest for 3 years at 5% per annum.",
		"Prove that a set of vectors closed under addition forms a subspace.",
		"What is the time complexity of binary search?",
		"Describe the role of the guide RNA in CRISPR.",
		"Part of the cell responsible for respiration is called what?",
		"Section of a beam under pure bending: derive the flexure formula.",
		"State and prove the Cauchy-Schwarz inequality.",
		"Derive the equation of continuity for an incompressible flow.",
		"Write a program to reverse a linked list.",
	}
	f := New()
	for _, line := range questions {
		if r, ok := f.MatchRule(line); ok {
			t.Errorf("question %q dropped by rule %q", line, r.Name)
		}
	}
}

func TestDefaultRules_Names(t *testing.T) {
	seen := make(map[string]bool)
	for _, r := range DefaultRules {
		if r.Name == "" {
			t.Fatal("rule without name")
		}
		if seen[r.Name] {
			t.Fatalf("duplicate rule name %q", r.Name)
		}
		seen[r.Name] = true
	}
}
