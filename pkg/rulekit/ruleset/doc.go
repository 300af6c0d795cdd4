/*
Package ruleset reads rule definitions from text, files, directories and
stores, and registers them with a rulekit.Engine.

# Grammar

A rule file holds one or more rules:

	rule ADULT adults expr
	when
	    age > 18;
	    country == 'CA';
	then
	    stage = 'adult';
	    data.code = 0;

The header is "rule NAME [DESCRIPTION] [ENGINE]". The keyword is
case-insensitive and must start a line. ENGINE defaults to "expr", the
only engine Apply accepts. when and then each appear exactly once per
rule. Conditions and assignments are separated by ';'. An empty when
always matches; an empty then writes nothing. Block comments
(slash-star to star-slash) are removed before anything else.

# YAML

Files ending in .yaml or .yml hold a list of rules:

	- name: ADULT
	  description: adults
	  when:
	    - age > 18
	  then:
	    stage: "'adult'"
	    data.code: "0"

then keeps the key order of the file.

# Loading

	defs, err := ruleset.LoadDir("rules/")
	err = ruleset.Apply(engine, defs)

Build compiles definitions without registering them, for callers that
swap a whole rule set with Engine.Replace.
*/
package ruleset
