package extract

// Prompt templates. Each asks for strict JSON so responses parse without a
// second round trip; parsing still tolerates code fences and leading prose.
const (
	classifyPrompt = `Classify the following document into exactly one of these kinds:
code, documentation, ticket, configuration, data, unknown.

Return a JSON object: {"kind": "<kind>", "confidence": <0..1>}

File path: %s

Document:
%s`

	entityPrompt = `Extract the entities mentioned in the following document.
Allowed entity types: %s.
Use line numbers from the document where identifiable.

Return a JSON object:
{
  "entities": [
    {
      "name": "entity name",
      "type": "entity_type",
      "description": "one sentence",
      "confidence": 0.9,
      "line_start": 1,
      "line_end": 5,
      "properties": {}
    }
  ]
}

File path: %s

Document:
%s`

	relationPrompt = `Extract relationships between the listed entities from the document.
Allowed relation types: %s.

Return a JSON object:
{
  "relations": [
    {
      "source": "entity name",
      "target": "entity name",
      "type": "relation_type",
      "confidence": 0.9,
      "properties": {}
    }
  ]
}

Entities: %s

Document:
%s`

	factPrompt = `Extract standalone factual statements from the document: decisions,
constraints, behaviors and conventions worth remembering. Skip trivia.

Return a JSON object:
{
  "facts": [
    {
      "statement": "a single self-contained fact",
      "subject": "the entity the fact is about",
      "confidence": 0.9
    }
  ]
}

File path: %s

Document:
%s`

	schemaPrompt = `The documents below come from one project. Propose up to %d additional
entity types that the standard taxonomy is missing for this project, if any.

Standard types: %s.

Return a JSON object:
{
  "additional_entity_types": [
    {"type": "snake_case_type", "layer": "one of: %s", "description": "one sentence"}
  ]
}

Document samples:
%s`
)
